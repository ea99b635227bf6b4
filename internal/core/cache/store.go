package cache

import (
	"context"
	"fmt"
	"time"

	"recipe-lens/internal/infrastructure/config"
)

// Store 快取儲存介面
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Stats() Stats
	Close() error
}

// Stats 快取統計
type Stats struct {
	Driver    string  `json:"driver"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size,omitempty"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Errors    int64   `json:"errors"`
	HitRatio  float64 `json:"hit_ratio"`
}

func hitRatio(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// NewStore 依設定建立快取，關閉時回傳 nil
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	switch cfg.Cache.Driver {
	case "", "memory":
		return NewManager(cfg.Cache.MaxSize, cfg.Cache.TTL, cfg.Cache.CleanupInterval), nil
	case "redis":
		store, err := NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
}

// defaultTTL 未設定時使用
const defaultTTL = 24 * time.Hour
