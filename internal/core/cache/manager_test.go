package cache

import (
	"context"
	"testing"
	"time"

	"recipe-lens/internal/infrastructure/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(maxSize int, ttl time.Duration) (*Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(maxSize, ttl, 0)
	m.now = clock.now
	return m, clock
}

func TestManagerGetSet(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(10, time.Minute)
	defer m.Close()

	if _, ok := m.Get(ctx, "missing"); ok {
		t.Error("expected miss for unknown key")
	}
	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := m.Get(ctx, "k")
	if !ok || got != "v" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	stats := m.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.HitRatio != 0.5 {
		t.Errorf("hit ratio = %v", stats.HitRatio)
	}
}

func TestManagerExpiry(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(10, time.Minute)
	defer m.Close()

	_ = m.Set(ctx, "k", "v")
	clock.advance(2 * time.Minute)

	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}
	if stats := m.Stats(); stats.Size != 0 || stats.Evictions != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestManagerEvictsLeastUsed(t *testing.T) {
	ctx := context.Background()
	m, clock := newTestManager(2, time.Hour)
	defer m.Close()

	_ = m.Set(ctx, "a", "1")
	clock.advance(time.Second)
	_ = m.Set(ctx, "b", "2")
	m.Get(ctx, "a")

	if err := m.Set(ctx, "c", "3"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := m.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := m.Get(ctx, "a"); !ok {
		t.Error("expected a to survive")
	}
	if _, ok := m.Get(ctx, "c"); !ok {
		t.Error("expected c to be stored")
	}
}

func TestManagerEvictsEmptyKey(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(1, time.Hour)
	defer m.Close()

	if err := m.Set(ctx, "", "blank"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	// 容量為 1 時空字串鍵也必須能被淘汰
	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set at capacity: %v", err)
	}
	if _, ok := m.Get(ctx, ""); ok {
		t.Error("expected empty key to be evicted")
	}
	if got, ok := m.Get(ctx, "k"); !ok || got != "v" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	if stats := m.Stats(); stats.Size != 1 || stats.Evictions != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestManagerOverwriteAtCapacity(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(1, time.Hour)
	defer m.Close()

	_ = m.Set(ctx, "a", "1")
	if err := m.Set(ctx, "a", "2"); err != nil {
		t.Fatalf("overwrite should not evict: %v", err)
	}
	if got, _ := m.Get(ctx, "a"); got != "2" {
		t.Errorf("got %q", got)
	}
	if m.Stats().Evictions != 0 {
		t.Error("overwrite caused eviction")
	}
}

func TestManagerClose(t *testing.T) {
	m := NewManager(10, time.Minute, 10*time.Millisecond)
	_ = m.Set(context.Background(), "k", "v")

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// 重複關閉不應 panic
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if m.Stats().Size != 0 {
		t.Error("expected cache to be emptied")
	}
}

func TestManagerUnbounded(t *testing.T) {
	// maxSize 為 0 代表不限制
	m, _ := newTestManager(0, time.Minute)
	defer m.Close()
	for i := 0; i < 50; i++ {
		if err := m.Set(context.Background(), string(rune('a'+i)), "v"); err != nil {
			t.Fatalf("unbounded cache returned %v", err)
		}
	}
	if got := m.Stats().Size; got != 50 {
		t.Errorf("size = %d, want 50", got)
	}
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		cache      config.CacheConfig
		wantNil    bool
		wantErr    bool
		wantDriver string
	}{
		{"disabled", config.CacheConfig{Enabled: false}, true, false, ""},
		{"memory", config.CacheConfig{Enabled: true, Driver: "memory", MaxSize: 5}, false, false, "memory"},
		{"default driver", config.CacheConfig{Enabled: true}, false, false, "memory"},
		{"unknown", config.CacheConfig{Enabled: true, Driver: "memcached"}, true, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(ctx, &config.Config{Cache: tt.cache})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if (store == nil) != tt.wantNil {
				t.Fatalf("store = %v, wantNil %v", store, tt.wantNil)
			}
			if store != nil {
				defer store.Close()
				if got := store.Stats().Driver; got != tt.wantDriver {
					t.Errorf("driver = %q, want %q", got, tt.wantDriver)
				}
			}
		})
	}
}
