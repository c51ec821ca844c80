package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/leadmarket/leadnotify/internal/config"
	"github.com/leadmarket/leadnotify/internal/handler"
	"github.com/leadmarket/leadnotify/internal/infra/postgresql"
	"github.com/leadmarket/leadnotify/internal/infra/postgresql/migrations"
	infraredis "github.com/leadmarket/leadnotify/internal/infra/redis"
	"github.com/leadmarket/leadnotify/internal/mailer"
	"github.com/leadmarket/leadnotify/internal/notify"
	"github.com/leadmarket/leadnotify/internal/observability"
	"github.com/leadmarket/leadnotify/internal/provider"
	"github.com/leadmarket/leadnotify/internal/queue"
	"github.com/leadmarket/leadnotify/internal/repository"
	"github.com/leadmarket/leadnotify/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

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
		logger.Fatal("leadnotify api exited with error", zap.Error(err))
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

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer broker.Close()

	leadRepo := repository.NewGormLeadRepo(db)
	buyerRepo := repository.NewGormBuyerRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return fmt.Errorf("rate limiter initialization failed: %w", err)
	}

	channel, err := provider.NewEmailFunctionProvider(cfg.NotifyFunctionURL)
	if err != nil {
		return fmt.Errorf("channel provider initialization failed: %w", err)
	}

	buyerMailer, err := mailer.NewBuyerMailer(leadRepo, buyerRepo, mailer.NewResendSender(cfg.ResendAPIKey), cfg.FromEmail, logger)
	if err != nil {
		return fmt.Errorf("mailer initialization failed: %w", err)
	}

	metrics := observability.NewMetrics()

	dispatcher, err := notify.NewDispatcher(attemptRepo, channel, limiter, cfg.MaxRetries, logger)
	if err != nil {
		return fmt.Errorf("dispatcher initialization failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)

	sweeper, err := notify.NewSweeper(attemptRepo, channel, limiter, cfg.SweepStaleness(), cfg.SweepBatchSize, cfg.SweepInterval(), logger)
	if err != nil {
		return fmt.Errorf("sweeper initialization failed: %w", err)
	}
	sweeper.SetMetrics(metrics)

	monitor, err := notify.NewMonitor(attemptRepo)
	if err != nil {
		return fmt.Errorf("monitor initialization failed: %w", err)
	}

	consumer := queue.NewRabbitMQConsumer(broker, cfg.WorkerConcurrency, logger)
	worker, err := notify.NewWorker(dispatcher, consumer, cfg.WorkerConcurrency, logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}

	publisher := queue.NewRabbitMQPublisher(broker)

	app, err := newApp(cfg, logger, metrics, handlerDeps{
		leads:      leadRepo,
		publisher:  publisher,
		dispatcher: dispatcher,
		monitor:    monitor,
		mailer:     buyerMailer,
		sqlDB:      sqlDB,
		rdb:        rdb,
		broker:     broker,
	})
	if err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("leadnotify api listening", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return worker.Start(groupCtx)
	})

	g.Go(func() error {
		return sweeper.Start(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down leadnotify api")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("leadnotify api stopped")
	return nil
}

type handlerDeps struct {
	leads      *repository.GormLeadRepo
	publisher  queue.Publisher
	dispatcher *notify.Dispatcher
	monitor    *notify.Monitor
	mailer     *mailer.BuyerMailer
	sqlDB      *sql.DB
	rdb        *goredis.Client
	broker     *queue.RabbitMQ
}

func newApp(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, deps handlerDeps) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		AppName:      "leadnotify",
		ErrorHandler: transport.ErrorHandler(logger),
	})

	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, deps.sqlDB, deps.rdb, deps.broker)

	leadHandler, err := handler.NewLeadHandler(deps.leads, deps.publisher, deps.dispatcher, deps.monitor, logger)
	if err != nil {
		return nil, fmt.Errorf("lead handler initialization failed: %w", err)
	}
	handler.RegisterLeadRoutes(app, leadHandler)

	monitorHandler, err := handler.NewMonitorHandler(deps.monitor)
	if err != nil {
		return nil, fmt.Errorf("monitor handler initialization failed: %w", err)
	}
	handler.RegisterMonitorRoutes(app, monitorHandler)

	functionHandler, err := handler.NewEmailFunctionHandler(deps.mailer, logger)
	if err != nil {
		return nil, fmt.Errorf("email function handler initialization failed: %w", err)
	}
	handler.RegisterEmailFunctionRoutes(app, functionHandler)

	return app, nil
}
