package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/bkaraoglu/finishline/internal/config"
	"github.com/bkaraoglu/finishline/internal/handler"
	"github.com/bkaraoglu/finishline/internal/infra/postgresql"
	"github.com/bkaraoglu/finishline/internal/infra/postgresql/migrations"
	infraredis "github.com/bkaraoglu/finishline/internal/infra/redis"
	"github.com/bkaraoglu/finishline/internal/notify"
	"github.com/bkaraoglu/finishline/internal/observability"
	"github.com/bkaraoglu/finishline/internal/outbox"
	"github.com/bkaraoglu/finishline/internal/queue"
	"github.com/bkaraoglu/finishline/internal/repository"
	"github.com/bkaraoglu/finishline/internal/service"
	"github.com/bkaraoglu/finishline/internal/transport"
	"github.com/bkaraoglu/finishline/internal/work"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

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
		logger.Fatal("finishline exited", zap.Error(err))
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

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	batchRepo := repository.NewGormBatchRepo(db)
	taskRepo := repository.NewGormTaskRepo(db)
	outboxRepo := repository.NewGormOutboxRepo(db)
	executionRepo := repository.NewGormExecutionRepo(db)

	notifier, err := notify.NewRedisNotifier(rdb)
	if err != nil {
		return err
	}

	limiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		return err
	}

	registry := work.NewRegistry()
	if cfg.WebhookTargetURL != "" {
		webhookHandler, err := work.NewWebhookHandler(cfg.WebhookTargetURL)
		if err != nil {
			return fmt.Errorf("webhook work unit init failed: %w", err)
		}
		if err := registry.Register(work.WebhookKind, webhookHandler); err != nil {
			return err
		}
	}
	logger.Info("work unit registry ready", zap.Strings("kinds", registry.Kinds()))

	metrics := observability.NewMetrics()

	populator, err := service.NewPopulator(batchRepo, taskRepo, outboxRepo, logger)
	if err != nil {
		return err
	}

	runner, err := service.NewRunner(taskRepo, executionRepo, registry, limiter, logger)
	if err != nil {
		return err
	}
	runner.SetMetrics(metrics)

	checker, err := service.NewChecker(batchRepo, taskRepo, notifier, publisher, cfg.NotifyProgress, logger)
	if err != nil {
		return err
	}
	checker.SetMetrics(metrics)

	sweeper, err := service.NewSweeper(batchRepo, taskRepo, executionRepo, cfg.CleanupPageSize, logger)
	if err != nil {
		return err
	}
	sweeper.SetMetrics(metrics)

	worker, err := service.NewWorker(runner, checker, sweeper, consumer, cfg.WorkerConcurrency, logger)
	if err != nil {
		return err
	}

	relay, err := outbox.NewRelay(outboxRepo, publisher, time.Duration(cfg.OutboxScanIntervalMs)*time.Millisecond, 0, logger)
	if err != nil {
		return err
	}

	statusReader, err := service.NewStatusReader(batchRepo, taskRepo)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, outboxRepo)
	if err := handler.RegisterBatchRoutes(app, populator, statusReader, logger); err != nil {
		return err
	}
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Start(groupCtx)
	})

	g.Go(func() error {
		return relay.Start(groupCtx)
	})

	g.Go(func() error {
		logger.Info("finishline api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("finishline stopped")
	return nil
}
