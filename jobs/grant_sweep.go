package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/harborlight-hq/harborlight/internal/grants"
	jobmetrics "github.com/harborlight-hq/harborlight/internal/jobs"
)

// GrantSweepDeps collects what the sweep handler needs.
type GrantSweepDeps struct {
	Grants  *grants.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGrantSweepHandler returns the handler for TaskGrantSweep. The
// sweep is purely hygienic: expiry is enforced at read time, so a
// missed run never extends access.
func NewGrantSweepHandler(deps GrantSweepDeps) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload GrantSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := deps.Metrics.Track(TaskGrantSweep)
		removed, err := deps.Grants.SweepExpired(ctx)
		if err != nil {
			return tracker.End(err)
		}
		deps.Logger.Info("expired grants swept", slog.Int64("removed", removed))
		return tracker.End(nil)
	}
}
