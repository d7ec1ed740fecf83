package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/judge-engine/internal/api"
	"github.com/terra-clan/judge-engine/internal/audit"
	"github.com/terra-clan/judge-engine/internal/catalog"
	"github.com/terra-clan/judge-engine/internal/config"
	"github.com/terra-clan/judge-engine/internal/engine"
	"github.com/terra-clan/judge-engine/internal/health"
	"github.com/terra-clan/judge-engine/internal/metrics"
	"github.com/terra-clan/judge-engine/internal/notify"
	"github.com/terra-clan/judge-engine/internal/storage"
)

func main() {
	// Setup structured logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if lvl, err := cfg.Log.SlogLevel(); err == nil {
		level.Set(lvl)
	}

	slog.Info("starting judge-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Initialize assignment store
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.Migrate(initCtx, repo.Pool(), cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Host application submissions
	submissions, err := storage.NewSQLSubmissionRepository(initCtx, cfg.SubmissionsDSN())
	if err != nil {
		slog.Error("failed to connect to submissions database", "error", err)
		os.Exit(1)
	}

	// Load hackathon catalog
	hackathons := catalog.NewLoader()
	if err := hackathons.LoadFromDir(cfg.Catalog.Dir); err != nil {
		slog.Warn("failed to load hackathons from dir", "dir", cfg.Catalog.Dir, "error", err)
	}

	registry := health.NewRegistry()
	registry.Register("assignments", repo)
	registry.Register("submissions", submissions)

	// Notifications go to a Redis stream when configured, otherwise to the log
	var notifier engine.Notifier = notify.LogNotifier{}
	var redisNotifier *notify.RedisNotifier
	if cfg.Redis.Address != "" {
		redisNotifier, err = notify.NewRedisNotifier(initCtx, notify.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Stream:   cfg.Redis.NotifyStream,
		})
		if err != nil {
			slog.Error("failed to create redis notifier", "error", err)
			os.Exit(1)
		}
		notifier = redisNotifier
		registry.Register("redis", redisNotifier)
		slog.Info("notifications go to redis stream", "stream", redisNotifier.Stream())
	}

	recorder, err := metrics.NewPrometheus(nil, "")
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	eng := engine.New(repo, submissions, hackathons, engine.Config{
		DefaultMaxSubmissions: cfg.Engine.DefaultMaxSubmissions,
		MaxRetries:            cfg.Engine.MaxRetries,
		NotifyTimeout:         cfg.Engine.NotifyTimeout,
	},
		engine.WithNotifier(notifier),
		engine.WithMetrics(recorder),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consistency audit worker
	if cfg.Audit.Enabled {
		audit.NewAuditor(eng, hackathons, cfg.Audit.Interval).Start(ctx)
	}

	// Setup HTTP server
	server := api.NewServer(cfg.Server, eng, registry, nil)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Let in-flight notifications finish before closing their transport
	eng.Wait()

	if redisNotifier != nil {
		if err := redisNotifier.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}
	if err := submissions.Close(); err != nil {
		slog.Error("submissions database close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("judge-engine stopped")
}
