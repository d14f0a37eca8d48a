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
	"golang.org/x/sync/errgroup"

	"github.com/sealine-erp/sealine-erp/internal/app"
	"github.com/sealine-erp/sealine-erp/internal/audit"
	"github.com/sealine-erp/sealine-erp/internal/auth"
	"github.com/sealine-erp/sealine-erp/internal/authz"
	"github.com/sealine-erp/sealine-erp/internal/crew"
	"github.com/sealine-erp/sealine-erp/internal/documents"
	"github.com/sealine-erp/sealine-erp/internal/observability"
	"github.com/sealine-erp/sealine-erp/internal/platform/cache"
	"github.com/sealine-erp/sealine-erp/internal/platform/db"
	"github.com/sealine-erp/sealine-erp/internal/shared"
	"github.com/sealine-erp/sealine-erp/internal/users"
	"github.com/sealine-erp/sealine-erp/internal/view"
	"github.com/sealine-erp/sealine-erp/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "sealine_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	registry := authz.NewRegistry(authz.DefaultGrants())
	evaluator := authz.NewEvaluator(registry, logger)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)

	resolver := auth.NewResolver(usersService)
	gate := authz.NewGate(resolver, evaluator, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	documentsRepo := documents.NewRepository(dbpool)
	documentsService := documents.NewService(documentsRepo, auditLogger, idempotencyStore, jobClient, logger)
	documentsHandler := documents.NewHandler(documentsService, gate, logger)

	usersHandler := users.NewHandler(usersService, gate, logger)

	crewRepo := crew.NewRepository(dbpool)
	crewService := crew.NewService(crewRepo)
	crewHandler := crew.NewHandler(crewService, gate, logger)

	auditRepo := audit.NewRepository(dbpool)
	auditHandler := audit.NewHandler(auditRepo, gate, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Gate:             gate,
		AuthHandler:      authHandler,
		DocumentsHandler: documentsHandler,
		UsersHandler:     usersHandler,
		CrewHandler:      crewHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
