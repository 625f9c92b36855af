package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status values for a safety alert.
const (
	StatusActive            = "active"
	StatusCancelRecommended = "cancel_recommended"
	StatusResolved          = "resolved"
	StatusCancelled         = "cancelled"
)

// Alert is a safety flag on a participant. Cancelling one is a
// two-person operation: one actor recommends, a different actor
// approves. The comparison is on actor identity, not role, so a single
// person holding every role still cannot do both halves.
type Alert struct {
	ID                  uuid.UUID
	SubjectID           uuid.UUID
	Status              string
	Detail              string
	CreatedBy           int64
	CreatedAt           time.Time
	CancelRecommendedBy *int64
	CancelApprovedBy    *int64
	UpdatedAt           time.Time
}

// IntegrityRuleViolation rejects a transition that would let one actor
// complete both halves of the two-person rule. The alert is unchanged;
// the explicit type lets the UI explain the rule instead of showing a
// bare rejection.
type IntegrityRuleViolation struct {
	AlertID uuid.UUID
	ActorID int64
	Rule    string
}

func (e *IntegrityRuleViolation) Error() string {
	return fmt.Sprintf("alerts: %s (alert %s, actor %d)", e.Rule, e.AlertID, e.ActorID)
}

// InvalidTransitionError rejects a transition from the wrong state.
type InvalidTransitionError struct {
	AlertID uuid.UUID
	From    string
	To      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("alerts: cannot move alert %s from %s to %s", e.AlertID, e.From, e.To)
}
