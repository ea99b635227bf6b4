package classifier

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"recipe-lens/internal/core/image"
	"recipe-lens/internal/core/recipe"

	"github.com/go-resty/resty/v2"
)

// RemoteClassifier 呼叫模型服務的 /predict
type RemoteClassifier struct {
	client *resty.Client
}

type predictRequest struct {
	Image string `json:"image"`
	Config
}

// NewRemoteClassifier 創建遠端分類器
func NewRemoteClassifier(baseURL string, timeout time.Duration) *RemoteClassifier {
	client := resty.New().SetBaseURL(baseURL)
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &RemoteClassifier{client: client}
}

// Name 分類器名稱
func (c *RemoteClassifier) Name() string {
	return "remote"
}

// Classify 上傳圖片與模型參數
func (c *RemoteClassifier) Classify(ctx context.Context, img image.Handle, cfg Config) ([]recipe.Prediction, error) {
	if img.Empty() {
		return nil, image.ErrEmptyImage
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(predictRequest{
			Image:  base64.StdEncoding.EncodeToString(img.Data),
			Config: cfg,
		}).
		Post("/predict")
	if err != nil {
		return nil, fmt.Errorf("failed to send request to model server: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("model server returned error (status %d): %s", resp.StatusCode(), resp.String())
	}

	preds, err := parsePredictions(resp.String())
	if err != nil {
		return nil, err
	}
	return cfg.Apply(preds), nil
}
