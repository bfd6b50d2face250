package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/crm-helpdesk/internal/api/http"
	"github.com/spec-kit/crm-helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/crm-helpdesk/internal/auth"
	"github.com/spec-kit/crm-helpdesk/internal/config"
	"github.com/spec-kit/crm-helpdesk/internal/events"
	"github.com/spec-kit/crm-helpdesk/internal/mailbox"
	"github.com/spec-kit/crm-helpdesk/internal/notify"
	"github.com/spec-kit/crm-helpdesk/internal/observability"
	"github.com/spec-kit/crm-helpdesk/internal/persistence"
	"github.com/spec-kit/crm-helpdesk/internal/repository"
	"github.com/spec-kit/crm-helpdesk/internal/service"
	"github.com/spec-kit/crm-helpdesk/internal/worker"
)

const notificationQueueSize = 256

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
	logger = logger.With(zap.String("service", cfg.App.Name), zap.String("version", cfg.App.Version))

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	settingsRepo := repository.NewEmailSettingsRepository(pool)
	templateRepo := repository.NewEmailTemplateRepository(pool)
	statsRepo := repository.NewStatsRepository(pool)

	settingsService := service.NewSettingsService(service.SettingsDependencies{
		SettingsRepo:    settingsRepo,
		TemplateRepo:    templateRepo,
		MailboxDefaults: cfg.Mailbox,
		SMTPDefaults:    cfg.SMTP,
	})

	sender := notify.NewSMTPSender(logger)
	notificationWorker := worker.NewNotificationWorker(events.NewInMemoryDispatcher(), notificationQueueSize, logger)
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: notificationWorker,
		Sender:     sender,
		Settings:   settingsService,
		AgentRepo:  agentRepo,
		Metrics:    metrics,
		Logger:     logger,
		Config:     cfg.Notification,
	})
	notificationService.RegisterHandlers()
	notificationWorker.Start()

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   ticketRepo,
		MessageRepo:  messageRepo,
		CustomerRepo: customerRepo,
		HistoryRepo:  historyRepo,
		Dispatcher:   notificationWorker,
		Logger:       logger,
	})
	customerService := service.NewCustomerService(customerRepo)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{AgentRepo: agentRepo})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), agentRepo)

	reconciler := service.NewReconciler(service.ReconcilerDependencies{
		TicketRepo:    ticketRepo,
		CustomerRepo:  customerRepo,
		MessageRepo:   messageRepo,
		HistoryRepo:   historyRepo,
		Notifier:      notificationService,
		NotifyTimeout: cfg.Notification.Timeout(),
		Logger:        logger,
	})
	dialer := mailbox.NewIMAPDialer(logger, mailbox.WithMaxBodyBytes(cfg.Ingestion.MaxBodyBytes))

	var passLock service.PassLock
	if cfg.Ingestion.DistributedLock {
		passLock = service.NewRedisPassLock(redis.Cmdable(), "", cfg.Ingestion.LockTTL())
	}
	ingestionService := service.NewIngestionService(service.IngestionDependencies{
		Dialer:          dialer,
		Reconciler:      reconciler,
		Lock:            passLock,
		CheckNowTimeout: cfg.Ingestion.CheckNowTimeout(),
		Metrics:         metrics,
		Logger:          logger,
	})

	poller := worker.NewMailboxPoller(settingsService.Mailbox, ingestionService, cfg.Ingestion.Fallback(), logger)
	if cfg.Ingestion.AutoStart {
		poller.Start()
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, poller,
		handlers.HealthCheck{Name: "postgres", Pinger: pg},
		handlers.HealthCheck{Name: "redis", Pinger: redis},
	)
	emailHandler := handlers.NewEmailHandler(handlers.EmailHandlerDependencies{
		Settings:  settingsService,
		Ingestion: ingestionService,
		Monitor:   poller,
		Dialer:    dialer,
		Sender:    sender,
		Logger:    logger,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Agents:         handlers.NewAgentsHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Customers:      handlers.NewCustomersHandler(customerService),
		Email:          emailHandler,
		Stats:          handlers.NewStatsHandler(service.NewStatsService(statsRepo)),
		AuthMiddleware: authMiddleware,
		Metrics:        registry,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("http server started", zap.String("addr", cfg.App.Addr()))

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	poller.Stop()
	if err := notificationWorker.Stop(shutdownCtx); err != nil {
		logger.Warn("notification worker shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
