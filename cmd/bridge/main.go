package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fxp-labs/support-bridge/internal/config"
	"github.com/fxp-labs/support-bridge/internal/events"
	"github.com/fxp-labs/support-bridge/internal/observability"
	"github.com/fxp-labs/support-bridge/internal/persistence"
	"github.com/fxp-labs/support-bridge/internal/queue"
	"github.com/fxp-labs/support-bridge/internal/repository"
	"github.com/fxp-labs/support-bridge/internal/service"
	"github.com/fxp-labs/support-bridge/internal/transport"
	"github.com/fxp-labs/support-bridge/internal/transport/telegram"
	"github.com/fxp-labs/support-bridge/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	queues := queue.NewRedisQueue(redis.Client)
	flags := queue.NewRedisControl(redis.Client)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(queues, flags, cfg.Queue, metrics, logger)
	notifications.RegisterHandlers(dispatcher)

	pool := pg.PoolHandle()
	ticketService := service.NewTicketService(service.TicketDependencies{
		GroupRepo:   repository.NewGroupRepository(pool),
		TicketRepo:  repository.NewTicketRepository(pool),
		MessageRepo: repository.NewMessageRepository(pool),
		Outgoing:    queues,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	if cfg.Transport.TelegramToken == "" {
		logger.Fatal("TELEGRAM_BOT_TOKEN is required")
	}
	adapter, err := telegram.New(cfg.Transport.TelegramToken, logger)
	if err != nil {
		logger.Fatal("failed to init telegram transport", zap.Error(err))
	}
	defer adapter.Close() //nolint:errcheck

	listener := transport.NewListener(queues, flags, cfg.Transport, cfg.Queue, metrics, logger)
	adapter.OnInbound(func(event transport.InboundEvent) {
		listener.Handle(ctx, event)
	})

	ingest := worker.NewIngestWorker(queues, ticketService, cfg.Queue, metrics, logger)
	dispatch := worker.NewDispatchWorker(queues, flags, adapter.Tracker(), adapter, cfg.Queue, metrics, logger)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		adapter.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		ingest.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		dispatch.Run(ctx)
	}()

	app := fiber.New()
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
	wg.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
