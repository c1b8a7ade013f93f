package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/opsdesk/ticketflow/internal/api/http"
	"github.com/opsdesk/ticketflow/internal/api/http/handlers"
	"github.com/opsdesk/ticketflow/internal/auth"
	"github.com/opsdesk/ticketflow/internal/config"
	"github.com/opsdesk/ticketflow/internal/events"
	"github.com/opsdesk/ticketflow/internal/observability"
	"github.com/opsdesk/ticketflow/internal/persistence"
	"github.com/opsdesk/ticketflow/internal/repository"
	"github.com/opsdesk/ticketflow/internal/service"
	"github.com/opsdesk/ticketflow/internal/worker"
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

	store := repository.NewStore(pg.PoolHandle())
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	slaService := service.NewSLAService(redis, cfg.SLA.Default(), logger)
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		SLA:        slaService,
		Logger:     logger,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		SLA:        slaService,
		Logger:     logger,
	})
	autoAssignService := service.NewAutoAssignService(store, assignmentService, logger)
	authService := service.NewAuthService(cfg.Auth, store)

	notificationService := service.NewNotificationService(store, dispatcher, logger)
	notificationService.RegisterHandlers()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Users())

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Assignments:    handlers.NewAssignmentsHandler(assignmentService, escalationService, autoAssignService),
		Users:          handlers.NewUsersHandler(assignmentService, store.Notifications()),
		AuthMiddleware: authMiddleware,
	})

	if cfg.Worker.SLAMonitorEnabled {
		monitor := worker.NewSLAMonitor(redis, cfg.Redis.DB, store, escalationService, logger)
		go func() {
			if err := monitor.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("sla monitor stopped", zap.Error(err))
			}
		}()
	}
	if cfg.Worker.RetryEnabled {
		retry := worker.NewAssignmentRetry(store, autoAssignService, cfg.Worker.RetryInterval(), logger)
		go func() {
			if err := retry.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("assignment retry worker stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
