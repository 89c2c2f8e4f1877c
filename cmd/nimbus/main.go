package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nimbus-billing/nimbus-billing/internal/app"
	"github.com/nimbus-billing/nimbus-billing/internal/auth"
	"github.com/nimbus-billing/nimbus-billing/internal/customers"
	"github.com/nimbus-billing/nimbus-billing/internal/dashboard"
	"github.com/nimbus-billing/nimbus-billing/internal/invoices"
	"github.com/nimbus-billing/nimbus-billing/internal/observability"
	"github.com/nimbus-billing/nimbus-billing/internal/platform/cache"
	"github.com/nimbus-billing/nimbus-billing/internal/platform/db"
	"github.com/nimbus-billing/nimbus-billing/internal/settings"
	"github.com/nimbus-billing/nimbus-billing/internal/shared"
	"github.com/nimbus-billing/nimbus-billing/internal/users"
	"github.com/nimbus-billing/nimbus-billing/internal/view"
	"github.com/nimbus-billing/nimbus-billing/jobs"
	"github.com/nimbus-billing/nimbus-billing/report"
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

	dbpool, err := db.NewWithOptions(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Sessions live in redis, so the API cannot come up without it.
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

	sessionManager := shared.NewSessionManager(redisClient, "nimbus_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)

	sessionRepo := auth.NewSessionRepository(dbpool)
	authService := auth.NewService(usersRepo, sessionRepo)
	authHandler := auth.NewHandler(logger, authService, usersService, sessionManager, csrfManager)

	auditLogger := shared.NewAuditLogger(dbpool)

	customersRepo := customers.NewRepository(dbpool)
	customersService := customers.NewService(customersRepo, auditLogger)
	customersHandler := customers.NewHandler(logger, customersService)

	settingsRepo := settings.NewRepository(dbpool)
	settingsService := settings.NewService(settingsRepo, auditLogger)
	settingsHandler := settings.NewHandler(logger, settingsService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	invoicesRepo := invoices.NewRepository(dbpool)
	invoicesService := invoices.NewService(invoicesRepo, customersService, settingsService, auditLogger, jobClient)

	reportClient := report.NewClient(cfg.GotenbergURL)
	invoiceRenderer := report.NewInvoiceRenderer(reportClient, templates)
	invoicesHandler := invoices.NewHandler(logger, invoicesService, invoiceRenderer)

	dashboardRepo := dashboard.NewRepository(dbpool)
	dashboardService := dashboard.NewService(dashboardRepo)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	loadUser := func(ctx context.Context, userID string) (*shared.CurrentUser, error) {
		id, err := strconv.ParseInt(userID, 10, 64)
		if err != nil {
			return nil, nil
		}
		account, err := usersService.Get(ctx, id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return users.CurrentUser(account), nil
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		LoadUser:         loadUser,
		AuthHandler:      authHandler,
		CustomersHandler: customersHandler,
		InvoicesHandler:  invoicesHandler,
		SettingsHandler:  settingsHandler,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Pool:             dbpool,
		Redis:            redisClient,
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
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
