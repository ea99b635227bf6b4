package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-lens/internal/api"
	"recipe-lens/internal/core/cache"
	"recipe-lens/internal/core/classifier"
	"recipe-lens/internal/core/image"
	"recipe-lens/internal/core/queue"
	"recipe-lens/internal/core/recipe"
	"recipe-lens/internal/core/recognition"
	"recipe-lens/internal/infrastructure/config"
	"recipe-lens/internal/infrastructure/metrics"
	"recipe-lens/internal/pkg/common"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("classifier", cfg.Classifier.Provider),
		zap.String("openrouter_api_key", config.MaskAPIKey(cfg.OpenRouter.APIKey)),
		zap.String("openrouter_model", cfg.OpenRouter.Model),
		zap.String("dataset", cfg.Dataset.Path),
	)

	metrics.Init(prometheus.DefaultRegisterer)

	// 建立食譜索引
	records, err := recipe.LoadDatasetFile(cfg.Dataset.Path)
	if err != nil {
		common.LogFatal("Failed to load recipe dataset", zap.String("path", cfg.Dataset.Path), zap.Error(err))
	}
	var indexOpts []recipe.IndexOption
	if cfg.Dataset.UnicodeFolding {
		indexOpts = append(indexOpts, recipe.WithUnicodeFolding())
	}
	index := recipe.NewIndex(records, indexOpts...)
	common.LogInfo("食譜索引已建立",
		zap.Int("recipes", index.Len()),
		zap.Int("classes", len(index.Classes())),
		zap.Bool("unicode_folding", cfg.Dataset.UnicodeFolding),
	)

	// 初始化快取
	ctx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := cache.NewStore(ctx, cfg)
	cancelInit()
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.String("driver", cfg.Cache.Driver), zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	// 初始化分類器
	clf, err := classifier.New(cfg, index.Classes())
	if err != nil {
		common.LogFatal("Failed to initialize classifier", zap.Error(err))
	}
	clf = classifier.WithCache(clf, store)

	// 分類隊列
	queueManager := queue.NewManager(cfg.Queue.Workers, cfg.Queue.MaxSize)
	defer queueManager.Close()

	svc := recognition.NewService(recognition.Deps{
		Index:            index,
		Images:           image.NewService(cfg.Image.MaxSizeBytes, cfg.Image.DownloadTimeout),
		Classifier:       clf,
		Queue:            queueManager,
		ClassifierConfig: classifier.ConfigFrom(cfg.Classifier),
		Defaults:         cfg.Resolver.Options(),
	})

	// 設置路由
	router, err := api.SetupRouter(cfg, svc, store)
	if err != nil {
		common.LogError("Failed to setup router", zap.Error(err))
		os.Exit(1)
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogError("Failed to start server",
				zap.Error(err),
			)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.LogError("Server forced to shutdown",
			zap.Error(err),
		)
		return
	}

	common.LogInfo("Server exited")
}
