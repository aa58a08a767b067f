package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/smartstock/smartstock/internal/app"
	"github.com/smartstock/smartstock/internal/auth"
	"github.com/smartstock/smartstock/internal/billing"
	"github.com/smartstock/smartstock/internal/dashboard"
	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/observability"
	"github.com/smartstock/smartstock/internal/platform/cache"
	"github.com/smartstock/smartstock/internal/platform/db"
	"github.com/smartstock/smartstock/internal/rbac"
	"github.com/smartstock/smartstock/internal/shared"
	"github.com/smartstock/smartstock/internal/suppliers"
	"github.com/smartstock/smartstock/internal/users"
	"github.com/smartstock/smartstock/internal/view"
	"github.com/smartstock/smartstock/jobs"
	"github.com/smartstock/smartstock/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, dbpool, logger); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "smartstock_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	rbacService := rbac.NewService(dbpool)
	guard := rbac.Guard{Resolver: rbacService, Logger: logger}

	authService := auth.NewService(auth.NewRepository(dbpool))
	if cfg.BootstrapUser != "" {
		created, err := authService.EnsureAdmin(ctx, cfg.BootstrapUser, cfg.BootstrapPass)
		if err != nil {
			logger.Error("bootstrap admin", slog.Any("error", err))
			os.Exit(1)
		}
		if created {
			logger.Info("bootstrap admin created", slog.String("username", cfg.BootstrapUser))
		}
	}
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, rbacService)

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, metrics, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, templates, csrfManager, guard)

	billingService := billing.NewService(billing.NewRepository(dbpool), billing.Options{
		Idempotency: idempotencyStore,
		Notifier:    jobClient,
		Observer:    metrics,
		Audit:       auditLogger,
		Logger:      logger,
	})
	reportClient := report.NewClient(cfg.GotenbergURL)
	pingCtx, cancelPing := context.WithTimeout(ctx, 3*time.Second)
	if err := reportClient.Ping(pingCtx); err != nil {
		logger.Warn("gotenberg unavailable, invoice PDFs will fail", slog.Any("error", err))
	}
	cancelPing()
	billingHandler := billing.NewHandler(logger, billingService, inventoryService, reportClient, templates, csrfManager, guard)

	supplierService := suppliers.NewService(suppliers.NewRepository(dbpool), approvalRecorder, auditLogger, metrics, logger)
	supplierHandler := suppliers.NewHandler(logger, supplierService, inventoryService, templates, csrfManager, guard)

	userService := users.NewService(users.NewRepository(dbpool), auditLogger, logger)
	userHandler := users.NewHandler(logger, userService, templates, csrfManager, guard)

	dashboardService := dashboard.NewService(inventoryService, supplierService, userService)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService, templates, csrfManager, guard)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Guard:            guard,
		AuthHandler:      authHandler,
		DashboardHandler: dashboardHandler,
		InventoryHandler: inventoryHandler,
		BillingHandler:   billingHandler,
		SuppliersHandler: supplierHandler,
		UsersHandler:     userHandler,
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
