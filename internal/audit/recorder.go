package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Store persists entries into the audit database.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
}

// Recorder writes audit entries for every kernel decision and mutation.
//
// Two write paths exist on purpose. Record is fire-and-continue: a lost
// entry is logged and counted but never blocks the action it describes,
// because a failed mutation with no trail is worse than an unaudited
// completed one. RecordDecision is synchronous: Deny and Gated outcomes
// are the records this kernel exists to produce, so the decision is not
// handed back to the caller until the entry is durable.
type Recorder struct {
	store    Store
	logger   *slog.Logger
	failures prometheus.Counter
	now      func() time.Time
}

// NewRecorder constructs a Recorder. The failures counter may be nil.
func NewRecorder(store Store, logger *slog.Logger, failures prometheus.Counter) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:    store,
		logger:   logger,
		failures: failures,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record persists an entry, swallowing storage failures after logging
// them to the operational error channel.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.write(ctx, entry); err != nil {
		if r.failures != nil {
			r.failures.Inc()
		}
		r.logger.Error("audit write failed",
			slog.String("action", entry.Action),
			slog.String("resource", entry.ResourceType+"/"+entry.ResourceID),
			slog.Any("error", err),
		)
	}
}

// RecordDecision persists an authorization outcome and reports failure
// to the caller, which must then withhold the decision.
func (r *Recorder) RecordDecision(ctx context.Context, entry Entry) error {
	if r == nil || r.store == nil {
		return errors.New("audit: recorder not initialised")
	}
	if err := r.write(ctx, entry); err != nil {
		if r.failures != nil {
			r.failures.Inc()
		}
		return err
	}
	return nil
}

func (r *Recorder) write(ctx context.Context, entry Entry) error {
	if entry.Action == "" || entry.ResourceType == "" {
		return errors.New("audit: entry requires action and resource type")
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now()
	}
	return r.store.Insert(ctx, entry)
}
