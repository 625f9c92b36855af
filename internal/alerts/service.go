package alerts

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/harborlight-hq/harborlight/internal/audit"
)

// Store abstracts persistence so the service can be tested in memory.
type Store interface {
	Insert(ctx context.Context, alert Alert) (Alert, error)
	Get(ctx context.Context, id uuid.UUID) (Alert, error)
	Transition(ctx context.Context, id uuid.UUID, from, to string, recommendedBy, approvedBy *int64) (bool, error)
	ListForSubject(ctx context.Context, subjectID uuid.UUID) ([]Alert, error)
}

// Service runs the safety alert state machine.
type Service struct {
	store    Store
	recorder *audit.Recorder
}

// NewService constructs a Service.
func NewService(store Store, recorder *audit.Recorder) *Service {
	return &Service{store: store, recorder: recorder}
}

// Create raises an active alert for a subject.
func (s *Service) Create(ctx context.Context, subjectID uuid.UUID, detail string, createdBy int64) (Alert, error) {
	alert, err := s.store.Insert(ctx, Alert{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Status:    StatusActive,
		Detail:    strings.TrimSpace(detail),
		CreatedBy: createdBy,
	})
	if err != nil {
		return Alert{}, err
	}
	s.audit(ctx, createdBy, "alert.create", alert, audit.DecisionOK)
	return alert, nil
}

// RecommendCancel is the first half of the two-person cancel.
func (s *Service) RecommendCancel(ctx context.Context, alertID uuid.UUID, actorID int64) (Alert, error) {
	alert, err := s.store.Get(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	if alert.Status != StatusActive {
		return Alert{}, &InvalidTransitionError{AlertID: alertID, From: alert.Status, To: StatusCancelRecommended}
	}
	ok, err := s.store.Transition(ctx, alertID, StatusActive, StatusCancelRecommended, &actorID, nil)
	if err != nil {
		return Alert{}, err
	}
	if !ok {
		// Lost a race with another transition.
		current, _ := s.store.Get(ctx, alertID)
		return Alert{}, &InvalidTransitionError{AlertID: alertID, From: current.Status, To: StatusCancelRecommended}
	}
	updated, err := s.store.Get(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	s.audit(ctx, actorID, "alert.recommend_cancel", updated, audit.DecisionOK)
	return updated, nil
}

// ApproveCancel is the second half of the two-person cancel. The
// approver must be a different person than both the recommender and
// the alert's creator; the check compares actor identity, not
// permission keys, so holding both roles closes no loophole.
func (s *Service) ApproveCancel(ctx context.Context, alertID uuid.UUID, actorID int64) (Alert, error) {
	alert, err := s.store.Get(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	if alert.Status != StatusCancelRecommended {
		return Alert{}, &InvalidTransitionError{AlertID: alertID, From: alert.Status, To: StatusCancelled}
	}
	if alert.CancelRecommendedBy != nil && *alert.CancelRecommendedBy == actorID {
		violation := &IntegrityRuleViolation{
			AlertID: alertID,
			ActorID: actorID,
			Rule:    "the actor who recommended cancellation cannot approve it",
		}
		s.audit(ctx, actorID, "alert.approve_cancel", alert, audit.DecisionDeny)
		return Alert{}, violation
	}
	if alert.CreatedBy == actorID {
		violation := &IntegrityRuleViolation{
			AlertID: alertID,
			ActorID: actorID,
			Rule:    "the actor who raised the alert cannot approve its cancellation",
		}
		s.audit(ctx, actorID, "alert.approve_cancel", alert, audit.DecisionDeny)
		return Alert{}, violation
	}
	ok, err := s.store.Transition(ctx, alertID, StatusCancelRecommended, StatusCancelled, alert.CancelRecommendedBy, &actorID)
	if err != nil {
		return Alert{}, err
	}
	if !ok {
		current, _ := s.store.Get(ctx, alertID)
		return Alert{}, &InvalidTransitionError{AlertID: alertID, From: current.Status, To: StatusCancelled}
	}
	updated, err := s.store.Get(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	s.audit(ctx, actorID, "alert.approve_cancel", updated, audit.DecisionOK)
	return updated, nil
}

// RejectCancel returns a recommended alert to active.
func (s *Service) RejectCancel(ctx context.Context, alertID uuid.UUID, actorID int64) (Alert, error) {
	alert, err := s.store.Get(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	if alert.Status != StatusCancelRecommended {
		return Alert{}, &InvalidTransitionError{AlertID: alertID, From: alert.Status, To: StatusActive}
	}
	ok, err := s.store.Transition(ctx, alertID, StatusCancelRecommended, StatusActive, nil, nil)
	if err != nil {
		return Alert{}, err
	}
	if !ok {
		current, _ := s.store.Get(ctx, alertID)
		return Alert{}, &InvalidTransitionError{AlertID: alertID, From: current.Status, To: StatusActive}
	}
	updated, err := s.store.Get(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	s.audit(ctx, actorID, "alert.reject_cancel", updated, audit.DecisionOK)
	return updated, nil
}

// ResolveDirect closes an active alert in one step. The caller must
// have authorized the privileged direct-resolve permission first.
func (s *Service) ResolveDirect(ctx context.Context, alertID uuid.UUID, actorID int64) (Alert, error) {
	alert, err := s.store.Get(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	if alert.Status != StatusActive {
		return Alert{}, &InvalidTransitionError{AlertID: alertID, From: alert.Status, To: StatusResolved}
	}
	ok, err := s.store.Transition(ctx, alertID, StatusActive, StatusResolved, nil, nil)
	if err != nil {
		return Alert{}, err
	}
	if !ok {
		current, _ := s.store.Get(ctx, alertID)
		return Alert{}, &InvalidTransitionError{AlertID: alertID, From: current.Status, To: StatusResolved}
	}
	updated, err := s.store.Get(ctx, alertID)
	if err != nil {
		return Alert{}, err
	}
	s.audit(ctx, actorID, "alert.resolve_direct", updated, audit.DecisionOK)
	return updated, nil
}

// ListForSubject returns a subject's alerts.
func (s *Service) ListForSubject(ctx context.Context, subjectID uuid.UUID) ([]Alert, error) {
	return s.store.ListForSubject(ctx, subjectID)
}

func (s *Service) audit(ctx context.Context, actorID int64, action string, alert Alert, decision string) {
	s.recorder.Record(ctx, audit.Entry{
		ActorID:      actorID,
		Action:       action,
		ResourceType: "safety_alert",
		ResourceID:   alert.ID.String(),
		Decision:     decision,
		Meta: map[string]any{
			"subject_id": alert.SubjectID.String(),
			"status":     alert.Status,
		},
	})
}
