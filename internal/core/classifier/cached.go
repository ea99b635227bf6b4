package classifier

import (
	"context"

	"recipe-lens/internal/core/cache"
	"recipe-lens/internal/core/image"
	"recipe-lens/internal/core/recipe"
	"recipe-lens/internal/infrastructure/metrics"
	"recipe-lens/internal/pkg/common"

	"go.uber.org/zap"
)

// CachedClassifier 以圖片哈希快取分類結果
type CachedClassifier struct {
	next  Classifier
	store cache.Store
}

// WithCache 包裝分類器；store 為 nil 時直接回傳原分類器
func WithCache(next Classifier, store cache.Store) Classifier {
	if store == nil {
		return next
	}
	return &CachedClassifier{next: next, store: store}
}

// Name 分類器名稱
func (c *CachedClassifier) Name() string {
	return c.next.Name()
}

func (c *CachedClassifier) key(img image.Handle, cfg Config) string {
	return "predictions:" + c.next.Name() + ":" + cfg.Key() + ":" + img.Hash
}

// Classify 先查快取，未命中時呼叫下層分類器並寫回
func (c *CachedClassifier) Classify(ctx context.Context, img image.Handle, cfg Config) ([]recipe.Prediction, error) {
	key := c.key(img, cfg)

	if val, ok := c.store.Get(ctx, key); ok {
		var preds []recipe.Prediction
		if err := common.ParseJSON(val, &preds); err == nil {
			metrics.ObserveCache(true)
			common.LogCacheHit("predictions")
			return preds, nil
		}
		common.LogWarn("快取內容無法解析，重新分類", zap.String("key", key))
	}
	metrics.ObserveCache(false)
	common.LogCacheMiss("predictions")

	preds, err := c.next.Classify(ctx, img, cfg)
	if err != nil {
		return nil, err
	}

	if encoded, err := common.ToJSON(preds); err == nil {
		if err := c.store.Set(ctx, key, encoded); err != nil {
			common.LogWarn("快取寫入失敗", zap.Error(err))
		}
	}
	return preds, nil
}
