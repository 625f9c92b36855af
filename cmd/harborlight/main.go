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
	"github.com/redis/go-redis/v9"

	"github.com/harborlight-hq/harborlight/internal/alerts"
	"github.com/harborlight-hq/harborlight/internal/app"
	"github.com/harborlight-hq/harborlight/internal/audit"
	audithttp "github.com/harborlight-hq/harborlight/internal/audit/http"
	"github.com/harborlight-hq/harborlight/internal/auth"
	"github.com/harborlight-hq/harborlight/internal/authz"
	"github.com/harborlight-hq/harborlight/internal/blocks"
	"github.com/harborlight-hq/harborlight/internal/consent"
	"github.com/harborlight-hq/harborlight/internal/directory"
	"github.com/harborlight-hq/harborlight/internal/fieldcrypt"
	"github.com/harborlight-hq/harborlight/internal/grants"
	"github.com/harborlight-hq/harborlight/internal/notes"
	"github.com/harborlight-hq/harborlight/internal/observability"
	"github.com/harborlight-hq/harborlight/internal/participants"
	"github.com/harborlight-hq/harborlight/internal/platform/db"
	"github.com/harborlight-hq/harborlight/jobs"
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

	// The audit database runs under its own INSERT+SELECT principal.
	auditPool, err := db.NewAudit(ctx, cfg.AuditPGDSN)
	if err != nil {
		logger.Error("connect audit postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer auditPool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	keys, err := fieldcrypt.ParseKeyList(cfg.FieldKeys)
	if err != nil {
		logger.Error("parse field keys", slog.Any("error", err))
		os.Exit(1)
	}
	encryptor, err := fieldcrypt.New(keys)
	if err != nil {
		logger.Error("init field encryptor", slog.Any("error", err))
		os.Exit(1)
	}

	policyStore, err := authz.LoadPolicyStore(cfg.PolicyPath)
	if err != nil {
		logger.Error("load policy", slog.Any("error", err), slog.String("path", cfg.PolicyPath))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	auditRepo := audit.NewRepository(auditPool)
	recorder := audit.NewRecorder(auditRepo, logger, metrics.AuditFailures())

	directoryRepo := directory.NewRepository(pool)
	roleCache := authz.NewRoleCache(directoryRepo, redisClient, policyStore, cfg.RoleCacheTTL)

	grantsRepo := grants.NewRepository(pool)
	grantsService := grants.NewService(grantsRepo, recorder, cfg.GrantTTL)

	blocksRepo := blocks.NewRepository(pool)
	blocksService := blocks.NewService(blocksRepo, recorder)

	resolver := authz.NewResolver(policyStore, roleCache, blocksService, grantsService, recorder, logger, metrics.AuthzDecisions())
	authzMiddleware := authz.Middleware{Resolver: resolver, Logger: logger}

	authService := auth.NewService(directoryRepo)
	authMiddleware := auth.NewMiddleware(authService, logger)

	participantsRepo := participants.NewRepository(pool, encryptor)
	participantsService := participants.NewService(participantsRepo, resolver)

	consentRepo := consent.NewRepository(pool)
	consentFilter := consent.NewFilter(consentRepo, logger)
	consentService := consent.NewService(consentRepo, recorder)

	notesRepo := notes.NewRepository(pool, encryptor)
	notesService := notes.NewService(notesRepo, resolver, consentFilter, roleCache, participantsRepo)

	alertsRepo := alerts.NewRepository(pool)
	alertsService := alerts.NewService(alertsRepo, recorder)

	auditService := audit.NewService(auditRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		AuthMiddleware:      authMiddleware,
		AuthzMiddleware:     authzMiddleware,
		PolicyStore:         policyStore,
		Recorder:            recorder,
		ParticipantsHandler: participants.NewHandler(logger, participantsService),
		NotesHandler:        notes.NewHandler(logger, notesService),
		GrantsHandler:       grants.NewHandler(logger, grantsService),
		BlocksHandler:       blocks.NewHandler(logger, blocksService),
		ConsentHandler:      consent.NewHandler(logger, consentService),
		AlertsHandler:       alerts.NewHandler(logger, alertsService),
		DirectoryHandler:    directory.NewHandler(logger, directoryRepo, recorder),
		AuditHandler:        audithttp.NewHandler(logger, auditService, resolver),
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
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
