package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/harborlight-hq/harborlight/internal/app"
	"github.com/harborlight-hq/harborlight/internal/audit"
	"github.com/harborlight-hq/harborlight/internal/fieldcrypt"
	"github.com/harborlight-hq/harborlight/internal/grants"
	jobmetrics "github.com/harborlight-hq/harborlight/internal/jobs"
	"github.com/harborlight-hq/harborlight/internal/notes"
	"github.com/harborlight-hq/harborlight/internal/participants"
	"github.com/harborlight-hq/harborlight/internal/platform/db"
	"github.com/harborlight-hq/harborlight/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	auditPool, err := db.NewAudit(ctx, cfg.AuditPGDSN)
	if err != nil {
		logger.Error("connect audit postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer auditPool.Close()

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

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)

	recorder := audit.NewRecorder(audit.NewRepository(auditPool), logger, nil)

	rotator := fieldcrypt.NewRotator(fieldcrypt.NewPGStore(pool), encryptor, logger, 0)
	rotationHandler := jobs.NewKeyRotationHandler(jobs.KeyRotationDeps{
		Rotator: rotator,
		Targets: []fieldcrypt.Target{
			participants.RotationTarget(),
			notes.RotationTarget(),
		},
		Logger:  logger,
		Metrics: metrics,
	})

	grantsService := grants.NewService(grants.NewRepository(pool), recorder, cfg.GrantTTL)
	sweepHandler := jobs.NewGrantSweepHandler(jobs.GrantSweepDeps{
		Grants:  grantsService,
		Logger:  logger,
		Metrics: metrics,
	})

	rotationTask, err := jobs.NewKeyRotationTask(time.Now())
	if err != nil {
		logger.Error("build rotation task", slog.Any("error", err))
		os.Exit(1)
	}
	sweepTask, err := jobs.NewGrantSweepTask(time.Now())
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskKeyRotation, Handler: rotationHandler},
			{Type: jobs.TaskGrantSweep, Handler: sweepHandler},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: rotationTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/30 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
