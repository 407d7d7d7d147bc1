package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/relay-core/relay/internal/app"
	"github.com/relay-core/relay/internal/identity"
	"github.com/relay-core/relay/internal/observability"
	"github.com/relay-core/relay/internal/platform/cache"
	"github.com/relay-core/relay/internal/platform/db"
	"github.com/relay-core/relay/internal/rbac"
	"github.com/relay-core/relay/internal/records"
	"github.com/relay-core/relay/internal/rpc"
	"github.com/relay-core/relay/internal/shared"
	"github.com/relay-core/relay/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	tokens := identity.NewTokenService(cfg.TokenSecret, cfg.TokenIssuer, cfg.TokenTTL)
	identityStore := identity.NewStore(pool)
	identityService := identity.NewService(identityStore, tokens)
	builder := identity.NewBuilder(tokens, identityStore, redisClient, cfg.IdentityCacheTTL, logger)

	rbacStore := rbac.NewStore(pool)
	rbacService := rbac.NewService(rbacStore, redisClient, cfg.RBACCacheTTL, logger)
	checker := rbac.NewChecker(rbacService)

	recordsRepo := records.NewRepository(pool, auditLogger)
	recordsService := records.NewService(recordsRepo, idempotencyStore)

	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry := app.BuildRegistry(app.RegistryParams{
		Logger:   logger,
		Metrics:  metrics,
		Identity: identityService,
		Records:  recordsService,
		Checker:  checker,
	})

	mapper := rpc.NewErrorMapper(logger, cfg.IsProduction())

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Builder:  builder,
		Registry: registry,
		Mapper:   mapper,
		Metrics:  metrics,
		Jobs:     jobHandler,
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
