package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskKeyRotation re-encrypts stored field ciphertext under the
	// primary key.
	TaskKeyRotation = "crypto:rotate"
	// TaskGrantSweep reclaims storage held by long-expired access
	// grants.
	TaskGrantSweep = "grants:sweep"
)

// KeyRotationPayload carries scheduling metadata for a rotation run.
type KeyRotationPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewKeyRotationTask constructs an Asynq task for a rotation pass.
func NewKeyRotationTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(KeyRotationPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskKeyRotation, body, asynq.Queue(QueueDefault)), nil
}

// GrantSweepPayload carries scheduling metadata for a sweep run.
type GrantSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewGrantSweepTask constructs an Asynq task for a grant sweep.
func NewGrantSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(GrantSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGrantSweep, body, asynq.Queue(QueueDefault)), nil
}
