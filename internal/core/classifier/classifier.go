package classifier

import (
	"context"
	"fmt"
	"sort"

	"recipe-lens/internal/core/image"
	"recipe-lens/internal/core/recipe"
	"recipe-lens/internal/infrastructure/config"
)

// Config 傳給分類模型的參數
// Threshold / NumResults 只作用於分類器本身，與 recipe.Options 互相獨立
type Config struct {
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	NumResults  int     `json:"num_results"`
	Threshold   float64 `json:"threshold"`
	ThreadCount int     `json:"thread_count"`
}

// ConfigFrom 從應用設定取得分類器參數
func ConfigFrom(cfg config.ClassifierConfig) Config {
	return Config{
		Mean:        cfg.Mean,
		Std:         cfg.Std,
		NumResults:  cfg.NumResults,
		Threshold:   cfg.Threshold,
		ThreadCount: cfg.ThreadCount,
	}
}

// Key 用於快取鍵
func (c Config) Key() string {
	return fmt.Sprintf("m%g-s%g-n%d-t%g", c.Mean, c.Std, c.NumResults, c.Threshold)
}

// Apply 在分類器端套用門檻與數量上限
func (c Config) Apply(preds []recipe.Prediction) []recipe.Prediction {
	out := make([]recipe.Prediction, 0, len(preds))
	for _, p := range preds {
		if p.Confidence < c.Threshold {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if c.NumResults > 0 && len(out) > c.NumResults {
		out = out[:c.NumResults]
	}
	return out
}

// Classifier 圖片分類器；沒有結果時回傳空切片或 nil
type Classifier interface {
	Classify(ctx context.Context, img image.Handle, cfg Config) ([]recipe.Prediction, error)
	Name() string
}

// New 依設定建立分類器；labels 為資料集中已知的類別名稱
func New(cfg *config.Config, labels []string) (Classifier, error) {
	switch cfg.Classifier.Provider {
	case "openrouter":
		return NewOpenRouterClassifier(OpenRouterOptions{
			APIKey:    cfg.OpenRouter.APIKey,
			BaseURL:   cfg.OpenRouter.BaseURL,
			Model:     cfg.OpenRouter.Model,
			MaxTokens: cfg.OpenRouter.MaxTokens,
			Timeout:   cfg.Classifier.Timeout,
			Labels:    labels,
		}), nil
	case "remote":
		return NewRemoteClassifier(cfg.Remote.URL, cfg.Classifier.Timeout), nil
	}
	return nil, fmt.Errorf("unknown classifier provider %q", cfg.Classifier.Provider)
}
