package middleware

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-lens/internal/pkg/common"
)

// Deduplicator 在時間窗內拒絕相同的 POST 請求（重複送出同一張照片）
type Deduplicator struct {
	window time.Duration

	mu       sync.Mutex
	requests map[string]time.Time
	now      func() time.Time
}

// NewDeduplicator 建立去重器，window <= 0 時使用 1 秒
func NewDeduplicator(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = time.Second
	}
	return &Deduplicator{
		window:   window,
		requests: make(map[string]time.Time),
		now:      time.Now,
	}
}

// seen 記錄指紋，時間窗內重複時回傳 true
func (d *Deduplicator) seen(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, exists := d.requests[fingerprint]; exists && now.Sub(last) <= d.window {
		return true
	}
	d.requests[fingerprint] = now

	// 順便清理過期指紋，避免 map 無限成長
	for k, t := range d.requests {
		if now.Sub(t) > 10*d.window {
			delete(d.requests, k)
		}
	}
	return false
}

// Middleware 請求去重中間件
func (d *Deduplicator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || c.Request.Body == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			common.LogError("Failed to read request body", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": common.ErrInvalidRequest.Response(false),
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		fingerprint := c.ClientIP() + ":" + c.Request.URL.Path + ":" + common.HashBytes(body)
		if d.seen(fingerprint) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": common.ErrTooManyRequests.Response(false),
			})
			return
		}

		c.Next()
	}
}
