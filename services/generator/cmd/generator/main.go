package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"questiongen/internal/ratelimit"
	"questiongen/internal/util"
	"questiongen/pkg/ai"
	"questiongen/pkg/extract"
	"questiongen/pkg/questionbank"
	"questiongen/pkg/queue"
	"questiongen/pkg/storage"
	"questiongen/pkg/store"
	"questiongen/services/generator/internal/app"
	"questiongen/services/generator/internal/config"
	"questiongen/services/generator/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	bank, err := questionbank.NewGormBank(dataStore.DB(), cfg.QuestionStatus)
	if err != nil {
		log.Fatalf("failed to init question bank: %v", err)
	}
	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}
	jobQueue, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.QueueStream,
		Group:    cfg.QueueGroup,
	})
	if err != nil {
		log.Fatalf("failed to init job queue: %v", err)
	}

	aiClient := ai.NewHTTPClient(ai.HTTPClientConfig{
		Endpoint:    cfg.AIEndpoint,
		APIKey:      cfg.AIAPIKey,
		Model:       cfg.AIModel,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemperature,
		Timeout:     time.Duration(cfg.AITimeoutSeconds) * time.Second,
	})
	if !aiClient.Configured() {
		logger.Warn("AI endpoint not configured, all jobs will use fallback content")
	}

	core, err := app.New(app.Config{
		Store:        dataStore,
		Objects:      objects,
		Extractor:    extract.NewPDFExtractor(),
		Analyzer:     ai.NewAnalyzer(aiClient),
		Generator:    ai.NewGenerator(aiClient),
		Bank:         bank,
		Queue:        jobQueue,
		CategoryName: cfg.CategoryName,
		AITimeout:    time.Duration(cfg.AITimeoutSeconds) * time.Second,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	limiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "questiongen:ratelimit:upload",
		cfg.UploadRateLimit, time.Duration(cfg.UploadRateWindowSeconds)*time.Second)
	if err != nil {
		log.Fatalf("failed to init rate limiter: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stream wake-ups run the claim immediately; the ticker is the
	// safety net for missed deliveries and restarts.
	jobQueue.Start(ctx, cfg.QueueConcurrency, func(ctx context.Context, jobID string) error {
		_, err := core.ClaimAndRun(ctx, cfg.ClaimBatchSize)
		return err
	})
	go pollLoop(ctx, core, cfg.ClaimBatchSize, time.Duration(cfg.PollIntervalSeconds)*time.Second)
	go sweepLoop(ctx, core, time.Duration(cfg.RetentionHours)*time.Hour, time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	httpServer := server.New(server.Config{
		App:            core,
		UploadLimiter:  limiter,
		TrustedProxies: trusted,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("generator server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func pollLoop(ctx context.Context, core *app.App, batch int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := core.ClaimAndRun(ctx, batch); err != nil {
				slog.Error("claim loop failed", "err", err)
			} else if n > 0 {
				slog.Info("claimed jobs from poll", "count", n)
			}
		}
	}
}

func sweepLoop(ctx context.Context, core *app.App, window, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := core.Sweep(ctx, window); err != nil {
				slog.Error("retention sweep failed", "err", err)
			}
		}
	}
}
