package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"recipe-lens/internal/core/recipe"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	Dataset     DatasetConfig    `mapstructure:"dataset"`
	Resolver    ResolverConfig   `mapstructure:"resolver"`
	Classifier  ClassifierConfig `mapstructure:"classifier"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Remote      RemoteConfig     `mapstructure:"remote"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Queue       QueueConfig      `mapstructure:"queue"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Image       ImageConfig      `mapstructure:"image"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
	LogDir      string           `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
}

// DatasetConfig 食譜資料集設定
type DatasetConfig struct {
	Path           string `mapstructure:"path"`
	UnicodeFolding bool   `mapstructure:"unicode_folding"`
}

// ResolverConfig 預測解析預設值，請求可覆寫
type ResolverConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	MaxResults          int     `mapstructure:"max_results"`
	ExpandPolicy        string  `mapstructure:"expand_policy"`
}

// Options 轉為 recipe.Options
func (c ResolverConfig) Options() recipe.Options {
	policy, err := recipe.ParseExpandPolicy(c.ExpandPolicy)
	if err != nil {
		policy = recipe.AllMatches
	}
	return recipe.Options{
		ConfidenceThreshold: c.ConfidenceThreshold,
		MaxResults:          c.MaxResults,
		ExpandPolicy:        policy,
	}
}

// ClassifierConfig 分類器設定（傳給模型的參數與 Resolve 的門檻互相獨立）
type ClassifierConfig struct {
	Provider    string        `mapstructure:"provider"`
	Mean        float64       `mapstructure:"mean"`
	Std         float64       `mapstructure:"std"`
	NumResults  int           `mapstructure:"num_results"`
	Threshold   float64       `mapstructure:"threshold"`
	ThreadCount int           `mapstructure:"thread_count"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// RemoteConfig 遠端模型服務設定
type RemoteConfig struct {
	URL string `mapstructure:"url"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RedisConfig Redis 連線設定
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 分類隊列設定
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	MaxSize int `mapstructure:"max_size"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes    int64         `mapstructure:"max_size_bytes"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// .env 不存在時只使用環境變數與預設值
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定常用環境變量
	_ = v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	_ = v.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	_ = v.BindEnv("classifier.provider", "CLASSIFIER_PROVIDER")
	_ = v.BindEnv("remote.url", "CLASSIFIER_URL")
	_ = v.BindEnv("dataset.path", "RECIPE_DATASET")
	_ = v.BindEnv("resolver.confidence_threshold", "CONFIDENCE_THRESHOLD")
	_ = v.BindEnv("resolver.max_results", "MAX_RESULTS")
	_ = v.BindEnv("resolver.expand_policy", "EXPAND_POLICY")
	_ = v.BindEnv("cache.enabled", "CACHE_ENABLED")
	_ = v.BindEnv("cache.driver", "CACHE_DRIVER")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	_ = v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	_ = v.BindEnv("dedup_window", "DEDUP_WINDOW")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "recipe-lens")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.max_body_bytes", 12<<20)

	// 資料集
	v.SetDefault("dataset.path", "assets/recipes.json")
	v.SetDefault("dataset.unicode_folding", false)

	// 預測解析：預設接受所有預測並展開所有食譜
	v.SetDefault("resolver.confidence_threshold", 0.0)
	v.SetDefault("resolver.max_results", recipe.Unlimited)
	v.SetDefault("resolver.expand_policy", string(recipe.AllMatches))

	// 分類器
	v.SetDefault("classifier.provider", "openrouter")
	v.SetDefault("classifier.mean", 0.0)
	v.SetDefault("classifier.std", 255.0)
	v.SetDefault("classifier.num_results", 5)
	v.SetDefault("classifier.threshold", 0.05)
	v.SetDefault("classifier.thread_count", 1)
	v.SetDefault("classifier.timeout", "60s")

	// OpenRouter 設定
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "qwen/qwen2.5-vl-72b-instruct:free")
	v.SetDefault("openrouter.max_tokens", 1000)

	// 遠端模型
	v.SetDefault("remote.url", "http://localhost:8888")

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "recipe-lens:")

	// 隊列設定
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_size", 100)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	// 圖片設定
	v.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB
	v.SetDefault("image.download_timeout", "30s")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}
	if config.Dataset.Path == "" {
		return fmt.Errorf("dataset path is required")
	}

	r := config.Resolver
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return fmt.Errorf("resolver confidence threshold must be within [0,1], got %v", r.ConfidenceThreshold)
	}
	if r.MaxResults < 0 {
		return fmt.Errorf("resolver max results must not be negative")
	}
	if _, err := recipe.ParseExpandPolicy(r.ExpandPolicy); err != nil {
		return err
	}

	switch config.Classifier.Provider {
	case "openrouter", "remote":
	default:
		return fmt.Errorf("unknown classifier provider %q", config.Classifier.Provider)
	}
	if config.Classifier.Provider == "remote" && config.Remote.URL == "" {
		return fmt.Errorf("remote classifier url is required")
	}

	if config.Cache.Enabled {
		switch config.Cache.Driver {
		case "memory":
			if config.Cache.MaxSize <= 0 {
				return fmt.Errorf("invalid cache max size")
			}
			if config.Cache.CleanupInterval <= 0 {
				return fmt.Errorf("invalid cache cleanup interval")
			}
		case "redis":
			if config.Redis.Addr == "" {
				return fmt.Errorf("redis addr is required")
			}
		default:
			return fmt.Errorf("unknown cache driver %q", config.Cache.Driver)
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
	}

	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	return nil
}
