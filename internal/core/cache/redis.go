package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"recipe-lens/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisOptions Redis 快取設定
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisStore Redis 快取
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits   int64
	misses int64
	errors int64
}

// NewRedisStore 建立並測試 Redis 連線
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStoreWithClient(client, opts), nil
}

func newRedisStoreWithClient(client *redis.Client, opts RedisOptions) *RedisStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: opts.Prefix,
		ttl:    ttl,
	}
}

// Get 獲取緩存，連線錯誤視為未命中
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			atomic.AddInt64(&s.errors, 1)
			common.LogWarn("Redis 讀取失敗", zap.Error(err))
		}
		atomic.AddInt64(&s.misses, 1)
		return "", false
	}
	atomic.AddInt64(&s.hits, 1)
	return val, true
}

// Set 設置緩存
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		atomic.AddInt64(&s.errors, 1)
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Stats 快取統計（大小不查詢 Redis）
func (s *RedisStore) Stats() Stats {
	hits := atomic.LoadInt64(&s.hits)
	misses := atomic.LoadInt64(&s.misses)
	return Stats{
		Driver:   "redis",
		Hits:     hits,
		Misses:   misses,
		Errors:   atomic.LoadInt64(&s.errors),
		HitRatio: hitRatio(hits, misses),
	}
}

// Close 關閉連線
func (s *RedisStore) Close() error {
	return s.client.Close()
}
