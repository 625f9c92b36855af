package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/harborlight-hq/harborlight/internal/fieldcrypt"
	jobmetrics "github.com/harborlight-hq/harborlight/internal/jobs"
)

// KeyRotationDeps collects what the rotation handler needs.
type KeyRotationDeps struct {
	Rotator *fieldcrypt.Rotator
	Targets []fieldcrypt.Target
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewKeyRotationHandler returns the handler for TaskKeyRotation. The
// pass is resumable and idempotent, so a crashed or re-enqueued run is
// safe to repeat.
func NewKeyRotationHandler(deps KeyRotationDeps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload KeyRotationPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := deps.Metrics.Track(TaskKeyRotation)
		for _, target := range deps.Targets {
			stats, err := deps.Rotator.Run(ctx, []fieldcrypt.Target{target})
			deps.Metrics.AddRotationRows(target.Table, "rewritten", int64(stats.Rewritten))
			deps.Metrics.AddRotationRows(target.Table, "skipped", int64(stats.Skipped))
			if err != nil {
				deps.Logger.Error("key rotation aborted",
					slog.String("table", target.Table),
					slog.Int("scanned", stats.Scanned),
					slog.Any("error", err),
				)
				return tracker.End(err)
			}
			deps.Logger.Info("key rotation pass complete",
				slog.String("table", target.Table),
				slog.Int("scanned", stats.Scanned),
				slog.Int("rewritten", stats.Rewritten),
				slog.Int("skipped", stats.Skipped),
			)
		}
		return tracker.End(nil)
	}
}
