package consent

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harborlight-hq/harborlight/internal/audit"
)

// Store abstracts the append-only event log.
type Store interface {
	Append(ctx context.Context, rec Record) (Record, error)
	HistoryFor(ctx context.Context, subjectID uuid.UUID) ([]Record, error)
}

// Service records consent grants and withdrawals. History is an
// append-only sequence; a withdrawal is a new record, never an edit.
type Service struct {
	store    Store
	recorder *audit.Recorder
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(store Store, recorder *audit.Recorder) *Service {
	return &Service{
		store:    store,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Grant appends a consent record for a scope.
func (s *Service) Grant(ctx context.Context, actorID int64, subjectID uuid.UUID, scope Scope, consentType string) (Record, error) {
	if scope.FromProgram == 0 || scope.ToProgram == 0 {
		return Record{}, errors.New("consent: scope requires both programs")
	}
	rec, err := s.store.Append(ctx, Record{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		Scope:       scope,
		ConsentType: consentType,
		GrantedAt:   s.now(),
	})
	if err != nil {
		return Record{}, err
	}
	s.audit(ctx, actorID, "consent.grant", rec)
	return rec, nil
}

// Withdraw appends a withdrawal record for a scope. The prior grant
// stays in history untouched.
func (s *Service) Withdraw(ctx context.Context, actorID int64, subjectID uuid.UUID, scope Scope, consentType string) (Record, error) {
	now := s.now()
	rec, err := s.store.Append(ctx, Record{
		ID:          uuid.New(),
		SubjectID:   subjectID,
		Scope:       scope,
		ConsentType: consentType,
		GrantedAt:   now,
		WithdrawnAt: &now,
	})
	if err != nil {
		return Record{}, err
	}
	s.audit(ctx, actorID, "consent.withdraw", rec)
	return rec, nil
}

// History returns the full event sequence for a subject.
func (s *Service) History(ctx context.Context, subjectID uuid.UUID) ([]Record, error) {
	return s.store.HistoryFor(ctx, subjectID)
}

func (s *Service) audit(ctx context.Context, actorID int64, action string, rec Record) {
	s.recorder.Record(ctx, audit.Entry{
		ActorID:      actorID,
		Action:       action,
		ResourceType: "consent_event",
		ResourceID:   rec.ID.String(),
		Decision:     audit.DecisionOK,
		Meta: map[string]any{
			"subject_id":   rec.SubjectID.String(),
			"from_program": rec.Scope.FromProgram,
			"to_program":   rec.Scope.ToProgram,
			"consent_type": rec.ConsentType,
		},
	})
}
