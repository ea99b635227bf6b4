package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recipe-lens/internal/core/image"
	"recipe-lens/internal/core/recipe"
	"recipe-lens/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrNoChoices 模型沒有回傳任何內容
var ErrNoChoices = errors.New("no choices in OpenRouter response")

const classifyPrompt = `You are a food image classifier. Look at the dish in the image and return the most likely dish classes.
Rules:
1. Answer with a JSON array only, no prose and no code fences.
2. Each element is {"label": "<class name>", "confidence": <number between 0 and 1>}.
3. Return at most %d elements, most likely first.
4. %s
5. If the image contains no food, return [].`

// OpenRouterOptions OpenRouter 分類器設定
type OpenRouterOptions struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Labels    []string
}

// OpenRouterClassifier 透過 OpenRouter 視覺模型分類圖片
type OpenRouterClassifier struct {
	client    *resty.Client
	model     string
	maxTokens int
	labels    []string
}

// NewOpenRouterClassifier 創建 OpenRouter 分類器
func NewOpenRouterClassifier(opts OpenRouterOptions) *OpenRouterClassifier {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://openrouter.ai/api/v1"
	}
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", opts.APIKey)).
		SetHeader("HTTP-Referer", "https://recipe-lens.app").
		SetHeader("X-Title", "Recipe Lens")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &OpenRouterClassifier{
		client:    client,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		labels:    opts.Labels,
	}
}

// Name 分類器名稱
func (c *OpenRouterClassifier) Name() string {
	return "openrouter"
}

// buildPrompt 組合提示詞，已知類別時要求模型只使用這些類別
func (c *OpenRouterClassifier) buildPrompt(cfg Config) string {
	limit := cfg.NumResults
	if limit <= 0 {
		limit = 5
	}
	labelRule := "Use short lowercase English dish names as labels."
	if len(c.labels) > 0 {
		labelRule = "Labels must be chosen from this list: " + strings.Join(c.labels, ", ") + "."
	}
	return fmt.Sprintf(classifyPrompt, limit, labelRule)
}

// Classify 送出圖片並解析模型回傳的預測
func (c *OpenRouterClassifier) Classify(ctx context.Context, img image.Handle, cfg Config) ([]recipe.Prediction, error) {
	if img.Empty() {
		return nil, image.ErrEmptyImage
	}

	req := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": c.buildPrompt(cfg)},
					{"type": "image_url", "image_url": map[string]string{"url": img.DataURI()}},
				},
			},
		},
		"max_tokens":  c.maxTokens,
		"temperature": 0,
	}

	common.LogDebug("Sending request to OpenRouter",
		zap.String("model", c.model),
		zap.Int("image_bytes", len(img.Data)),
		zap.Int("labels", len(c.labels)),
	)

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to send request to OpenRouter: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("OpenRouter API returned error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if len(result.Choices) == 0 {
		return nil, ErrNoChoices
	}

	preds, err := parsePredictions(result.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return cfg.Apply(preds), nil
}

// parsePredictions 解析模型輸出，接受陣列或 {"predictions": [...]}
func parsePredictions(content string) ([]recipe.Prediction, error) {
	content = common.ExtractJSON(content)
	if content == "" || content == "null" {
		return []recipe.Prediction{}, nil
	}

	if strings.HasPrefix(content, "{") {
		var wrapped struct {
			Predictions []recipe.Prediction `json:"predictions"`
		}
		if err := common.ParseJSON(content, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse classifier response: %w", err)
		}
		if wrapped.Predictions == nil {
			return []recipe.Prediction{}, nil
		}
		return wrapped.Predictions, nil
	}

	var preds []recipe.Prediction
	if err := common.ParseJSON(content, &preds); err != nil {
		return nil, fmt.Errorf("failed to parse classifier response: %w", err)
	}
	if preds == nil {
		preds = []recipe.Prediction{}
	}
	return preds, nil
}
