package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"recipe-lens/internal/api/handlers/health"
	recipeHandler "recipe-lens/internal/api/handlers/recipe"
	"recipe-lens/internal/api/middleware"
	"recipe-lens/internal/core/cache"
	"recipe-lens/internal/core/recognition"
	"recipe-lens/internal/infrastructure/config"
	"recipe-lens/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// 預設超時
	defaultTimeout = 120 * time.Second
	// 預設請求體大小限制 (12MB)
	defaultMaxBodySize = 12 << 20
)

// SetupRouter 設置路由；store 可為 nil（快取關閉）
func SetupRouter(cfg *config.Config, svc *recognition.Service, store cache.Store) (*gin.Engine, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("router requires config and recognition service")
	}

	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBodySize := cfg.Server.MaxBodyBytes
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件，requestid 需在 Logger 之前
	router.Use(middleware.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(common.GenerateUUID)))
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// 全局中間件：設置超時和服務
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Set(health.ConfigKey, cfg)
		c.Set(health.ServiceKey, svc)
		if store != nil {
			c.Set(health.CacheKey, store)
		}

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"error": common.ErrRequestTimeout.Response(cfg.App.Debug),
				"details": gin.H{
					"timeout": timeout.String(),
				},
			})
		}
	})

	// 健康檢查與監控
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 路由組
	api := router.Group("/api/v1")
	api.Use(middleware.BodySizeLimit(maxBodySize))
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}

	// 重複請求過濾只套用在圖片辨識
	var recognizeMiddleware []gin.HandlerFunc
	if cfg.DedupWindow > 0 {
		recognizeMiddleware = append(recognizeMiddleware, middleware.NewDeduplicator(cfg.DedupWindow).Middleware())
	}

	recipeGroup := api.Group("/recipe")
	recipeHandler.NewHandler(svc, cfg.App.Debug).Register(recipeGroup, recognizeMiddleware...)

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.Bool("index_ready", svc.Ready()),
		zap.Int("recipes", svc.IndexSize()),
		zap.Bool("cache_enabled", store != nil),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("timeout", timeout),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router, nil
}
