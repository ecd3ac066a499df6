package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatewise/traffic-report/internal/config"
	"github.com/gatewise/traffic-report/internal/database"
	"github.com/gatewise/traffic-report/internal/httpserver"
	"github.com/gatewise/traffic-report/internal/metrics"
	"github.com/gatewise/traffic-report/internal/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting traffic-report",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("store_backend", cfg.Storage.Backend),
		zap.String("timezone", cfg.Report.Timezone),
	)

	ctx := context.Background()

	var db *database.PostgresDB
	db, err = database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Warn("PostgreSQL not available, campaign lookups use in-memory storage", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
	}

	var ch *database.ClickHouseDB
	if cfg.Storage.Backend == config.BackendClickHouse {
		ch, err = database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("ClickHouse not available, falling back", zap.Error(err))
			ch = nil
		} else {
			defer ch.Close()
		}
	}

	var redis *database.RedisDB
	redis, err = database.NewRedisDB(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis not available, rate limiting is per-instance", zap.Error(err))
		redis = nil
	} else {
		defer redis.Close()
	}

	deps := &httpserver.Dependencies{
		DB:         db,
		ClickHouse: ch,
		Redis:      redis,
		Config:     cfg,
		Logger:     logger,
		Metrics:    metrics.New(),
	}

	handler := httpserver.NewServer(deps)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
