package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fxp-labs/support-bridge/internal/api/http"
	"github.com/fxp-labs/support-bridge/internal/api/http/handlers"
	"github.com/fxp-labs/support-bridge/internal/auth"
	"github.com/fxp-labs/support-bridge/internal/config"
	"github.com/fxp-labs/support-bridge/internal/observability"
	"github.com/fxp-labs/support-bridge/internal/persistence"
	"github.com/fxp-labs/support-bridge/internal/queue"
	"github.com/fxp-labs/support-bridge/internal/repository"
	"github.com/fxp-labs/support-bridge/internal/service"
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

	pool := pg.PoolHandle()
	ticketService := service.NewTicketService(service.TicketDependencies{
		GroupRepo:   repository.NewGroupRepository(pool),
		TicketRepo:  repository.NewTicketRepository(pool),
		MessageRepo: repository.NewMessageRepository(pool),
		Outgoing:    queues,
		Logger:      logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokens)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(tokens, cfg.Auth),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Control:        handlers.NewControlHandler(flags, ticketService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
