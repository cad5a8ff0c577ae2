package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/papermark/webhook-engine/internal/api"
	"github.com/papermark/webhook-engine/internal/config"
	"github.com/papermark/webhook-engine/internal/dispatch"
	"github.com/papermark/webhook-engine/internal/metrics"
	"github.com/papermark/webhook-engine/internal/payload"
	"github.com/papermark/webhook-engine/internal/queue"
	"github.com/papermark/webhook-engine/internal/store"
	ws "github.com/papermark/webhook-engine/internal/websocket"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	metrics.Register()

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Select the queue backend. The hosted queue delivers and retries on its
	// own; the Redis backend needs the in-process worker.
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	var publisher queue.Publisher
	workerDone := make(chan struct{})
	if cfg.UseQStash() {
		publisher = queue.NewQStashClient(cfg.QStashURL, cfg.QStashToken, logger)
		close(workerDone)
		logger.Info("using hosted queue backend", "url", cfg.QStashURL)
	} else {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		logger.Info("connected to Redis")

		publisher = queue.NewRedisQueue(redisClient, logger)
		worker := queue.NewWorker(redisClient, queue.WorkerConfig{NumWorkers: cfg.NumWorkers}, logger)
		go func() {
			worker.Start(workerCtx)
			close(workerDone)
		}()
	}

	// Live outcome feed
	hub := ws.NewHub(logger)
	go hub.Run()

	// Wire the delivery pipeline
	builder := payload.NewBuilder(pgStore, cfg.ViewBaseURL)
	dispatcher := dispatch.NewDispatcher(publisher, cfg.CallbackBaseURL, logger)
	emitter := dispatch.NewEmitter(pgStore, builder, dispatcher, logger)

	// Setup router
	router := api.NewRouter(pgStore, emitter, hub, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Let in-flight deliveries finish before exiting.
	stopWorker()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop before shutdown deadline")
	}

	logger.Info("server stopped")
}
