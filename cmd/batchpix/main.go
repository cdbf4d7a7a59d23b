package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/batchpix/internal/api"
	"github.com/dunamismax/batchpix/internal/config"
	"github.com/dunamismax/batchpix/internal/imaging"
	"github.com/dunamismax/batchpix/internal/pipeline"
	"github.com/dunamismax/batchpix/internal/preview"
	"github.com/dunamismax/batchpix/internal/ratelimit"
	"github.com/dunamismax/batchpix/internal/scheduler"
	"github.com/dunamismax/batchpix/internal/storage"
	"github.com/dunamismax/batchpix/internal/store"
	"github.com/dunamismax/batchpix/internal/telemetry"
	"github.com/dunamismax/batchpix/internal/webhook"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[batchpix] ", log.LstdFlags|log.Lmsgprefix)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "batchpix",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	if err := imaging.Startup(); err != nil {
		logger.Fatalf("imaging runtime startup failed: %v", err)
	}
	defer imaging.Shutdown()

	previews, err := buildPreviewStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("preview store setup failed: %v", err)
	}

	var history store.HistoryStore
	if cfg.Database.DSN != "" {
		pgHistory, err := store.NewPostgresHistoryStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("history store setup failed: %v", err)
		}
		defer func() {
			if err := pgHistory.Close(); err != nil {
				logger.Printf("history store close failed: %v", err)
			}
		}()
		history = pgHistory
		logger.Printf("transform history: postgres")
	} else {
		history = store.NewMemoryHistoryStore()
		logger.Printf("transform history: memory")
	}

	var hooks scheduler.WebhookSender
	if cfg.Webhook.URL != "" {
		hooks = webhook.NewClient(webhook.Config{
			SigningSecret: cfg.Webhook.SigningSecret,
			MaxAttempts:   cfg.Webhook.MaxAttempts,
		})
		logger.Printf("webhook delivery enabled endpoint=%s", cfg.Webhook.URL)
	}

	sched := scheduler.New(logger, pipeline.NewExecutor(previews), previews, scheduler.Options{
		DebounceWindow: cfg.Scheduler.DebounceWindow,
		History:        history,
		Webhook:        hooks,
		WebhookURL:     cfg.Webhook.URL,
	})
	sched.Start(ctx)

	var limiter api.RateLimiter
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Printf("redis client close failed: %v", err)
			}
		}()

		limiter, err = ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "batchpix:ratelimit")
		if err != nil {
			logger.Fatalf("rate limiter setup failed: %v", err)
		}
		logger.Printf("rate limiting enabled capacity=%d window=%s", cfg.RateLimit.Capacity, cfg.RateLimit.Window)
	}

	app := api.NewServer(logger, sched, api.Options{
		RateLimiter:    limiter,
		Tracer:         otel.Tracer("batchpix/api"),
		MaxUploadBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
		MaxBatchSize:   cfg.HTTP.MaxBatchSize,
	})

	mux := http.NewServeMux()
	mux.Handle("/", app.Handler())
	mux.Handle("GET /metrics/batch", sched.MetricsHandler())

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func buildPreviewStore(ctx context.Context, cfg config.Config, logger *log.Logger) (preview.Store, error) {
	if cfg.Preview.Backend != "minio" {
		logger.Printf("preview store: memory")
		return preview.NewMemoryStore(), nil
	}

	client, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Printf("preview store: minio bucket=%s", client.Bucket())
	return preview.NewObjectStore(client, cfg.Preview.Prefix), nil
}
