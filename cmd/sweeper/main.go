package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/leadmarket/leadnotify/internal/config"
	"github.com/leadmarket/leadnotify/internal/infra/postgresql"
	"github.com/leadmarket/leadnotify/internal/infra/postgresql/migrations"
	infraredis "github.com/leadmarket/leadnotify/internal/infra/redis"
	"github.com/leadmarket/leadnotify/internal/notify"
	"github.com/leadmarket/leadnotify/internal/observability"
	"github.com/leadmarket/leadnotify/internal/provider"
	"github.com/leadmarket/leadnotify/internal/repository"
	"go.uber.org/zap"
)

// Runs a single sweep pass and exits. Meant for cron-style invocation in
// environments that do not keep the api process (and its in-process sweeper)
// running continuously.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("sweep run failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}

	channel, err := provider.NewEmailFunctionProvider(cfg.NotifyFunctionURL)
	if err != nil {
		return fmt.Errorf("channel provider initialization failed: %w", err)
	}

	sweeper, err := notify.NewSweeper(
		repository.NewGormAttemptRepo(db),
		channel,
		limiter,
		cfg.SweepStaleness(),
		cfg.SweepBatchSize,
		cfg.SweepInterval(),
		logger,
	)
	if err != nil {
		return fmt.Errorf("sweeper initialization failed: %w", err)
	}

	report, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}

	logger.Info("sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)
	return nil
}
