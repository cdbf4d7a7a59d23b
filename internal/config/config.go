package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Preview   PreviewConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Tracing   TracingConfig
}

type HTTPConfig struct {
	Addr         string
	MaxUploadMB  int
	MaxBatchSize int
}

type SchedulerConfig struct {
	DebounceWindow time.Duration
}

// PreviewConfig selects where transform outputs live until download:
// "memory" keeps them in-process, "minio" puts them in object storage.
type PreviewConfig struct {
	Backend string
	Prefix  string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// DatabaseConfig is optional; an empty DSN keeps transform history in memory.
type DatabaseConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled  bool
	Capacity int
	Window   time.Duration
}

type WebhookConfig struct {
	URL           string
	SigningSecret string
	MaxAttempts   int
}

type TracingConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:         env("BATCHPIX_HTTP_ADDR", ":8080"),
			MaxUploadMB:  envInt("BATCHPIX_MAX_UPLOAD_MB", 64),
			MaxBatchSize: envInt("BATCHPIX_MAX_BATCH_SIZE", 100),
		},
		Scheduler: SchedulerConfig{
			DebounceWindow: envDuration("BATCHPIX_DEBOUNCE_WINDOW", 600*time.Millisecond),
		},
		Preview: PreviewConfig{
			Backend: env("BATCHPIX_PREVIEW_BACKEND", "memory"),
			Prefix:  env("BATCHPIX_PREVIEW_PREFIX", "previews"),
		},
		Storage: StorageConfig{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "batchpix-previews"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     env("REDIS_ADDR", "localhost:6379"),
			Password: env("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:  envBool("BATCHPIX_RATELIMIT_ENABLED", false),
			Capacity: envInt("BATCHPIX_RATELIMIT_CAPACITY", 60),
			Window:   envDuration("BATCHPIX_RATELIMIT_WINDOW", time.Minute),
		},
		Webhook: WebhookConfig{
			URL:           env("BATCHPIX_WEBHOOK_URL", ""),
			SigningSecret: env("BATCHPIX_WEBHOOK_SECRET", ""),
			MaxAttempts:   envInt("BATCHPIX_WEBHOOK_MAX_ATTEMPTS", 3),
		},
		Tracing: TracingConfig{
			Exporter:     env("BATCHPIX_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("BATCHPIX_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("BATCHPIX_OTLP_INSECURE", false),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
