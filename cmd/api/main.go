package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/jobticket-service/internal/api/http"
	"github.com/spec-kit/jobticket-service/internal/api/http/handlers"
	"github.com/spec-kit/jobticket-service/internal/auth"
	"github.com/spec-kit/jobticket-service/internal/backend"
	"github.com/spec-kit/jobticket-service/internal/config"
	"github.com/spec-kit/jobticket-service/internal/events"
	"github.com/spec-kit/jobticket-service/internal/observability"
	"github.com/spec-kit/jobticket-service/internal/persistence"
	"github.com/spec-kit/jobticket-service/internal/queuedepth"
	"github.com/spec-kit/jobticket-service/internal/repository"
	"github.com/spec-kit/jobticket-service/internal/service"
	"github.com/spec-kit/jobticket-service/internal/telemetry"
	"github.com/spec-kit/jobticket-service/internal/ticketnumber"
	"github.com/spec-kit/jobticket-service/internal/ticketstore"
	"github.com/spec-kit/jobticket-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	flags, err := config.ParseFlags(os.Args[0], os.Args[1:])
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}
	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flushTraces := telemetry.Setup(cfg.Telemetry, logger)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	store := ticketstore.New(cfg.Store.TicketDir, logger)
	if err := store.Start(); err != nil {
		logger.Fatal("failed to start ticket store", zap.Error(err))
	}
	defer store.Shutdown()

	numbers, err := ticketnumber.NewGenerator(cfg.Ticket.NodeID)
	if err != nil {
		logger.Fatal("failed to create ticket number generator", zap.Error(err))
	}

	spool, err := backend.NewSpool(cfg.Backend.SpoolDir, logger)
	if err != nil {
		logger.Fatal("failed to open spool folder", zap.Error(err))
	}

	printerRepo := repository.NewPrinterRepository(pg.Pool)
	ledgerRepo := repository.NewLedgerRepository(pg.Pool)
	archiveRepo := repository.NewArchiveRepository(pg.Pool)
	operatorRepo := repository.NewOperatorRepository(pg.Pool)
	queueDepth := queuedepth.NewPublisher(redis.Client)

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, service.LogMailer{Logger: logger}, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	ticketService := service.NewJobTicketService(cfg.Ticket, service.JobTicketDependencies{
		Store:       store,
		Numbers:     numbers,
		PrinterRepo: printerRepo,
		LedgerRepo:  ledgerRepo,
		ArchiveRepo: archiveRepo,
		Backend:     spool,
		QueueDepth:  queueDepth,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	go worker.StartQueueDepthWorker(ctx, ticketService, queueDepth, cfg.Backend.QueueDepthInterval(), logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, operatorRepo, tokens, logger)
	authMiddleware := auth.NewAuthMiddleware(tokens, operatorRepo, cfg.Auth.BackendToken)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
		BodyLimit:    64 * 1024 * 1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Probe{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Queue:          handlers.NewQueueHandler(ticketService, ticketService, metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer flushCancel()
	if err := flushTraces(flushCtx); err != nil {
		logger.Warn("trace flush", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
