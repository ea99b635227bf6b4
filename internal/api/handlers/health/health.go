package health

import (
	"net/http"
	"runtime"
	"time"

	"recipe-lens/internal/core/cache"
	"recipe-lens/internal/core/queue"
	"recipe-lens/internal/core/recognition"
	"recipe-lens/internal/infrastructure/config"
	"recipe-lens/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// 注入 gin.Context 的鍵
const (
	ConfigKey  = "config"
	ServiceKey = "recognition_service"
	CacheKey   = "cache_store"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Index     IndexStatus            `json:"index"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Cache     *cache.Stats           `json:"cache,omitempty"`
	Runtime   map[string]interface{} `json:"runtime"`
}

// IndexStatus 食譜索引狀態
type IndexStatus struct {
	Built   bool `json:"built"`
	Recipes int  `json:"recipes"`
	Classes int  `json:"classes"`
}

func serviceFrom(c *gin.Context) (*recognition.Service, bool) {
	v, exists := c.Get(ServiceKey)
	if !exists {
		return nil, false
	}
	svc, ok := v.(*recognition.Service)
	return svc, ok && svc != nil
}

// HealthCheck 健康檢查處理器
func HealthCheck(c *gin.Context) {
	cfg, ok := c.MustGet(ConfigKey).(*config.Config)
	if !ok {
		common.LogError("Invalid configuration type in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid configuration type"})
		return
	}

	svc, ok := serviceFrom(c)
	if !ok {
		common.LogError("Recognition service not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Recognition service not found"})
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   cfg.App.Version,
		Index: IndexStatus{
			Built:   svc.Ready(),
			Recipes: svc.IndexSize(),
			Classes: len(svc.Classes()),
		},
		Queue: svc.QueueStatus(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if !svc.Ready() {
		response.Status = "degraded"
	}

	if v, exists := c.Get(CacheKey); exists {
		if store, ok := v.(cache.Store); ok && store != nil {
			stats := store.Stats()
			response.Cache = &stats
		}
	}

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 索引建立完成才算就緒
func ReadinessCheck(c *gin.Context) {
	svc, ok := serviceFrom(c)
	if !ok || !svc.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"recipes": svc.IndexSize(),
	})
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
