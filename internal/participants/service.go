package participants

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/harborlight-hq/harborlight/internal/authz"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// Store abstracts persistence so the service can be tested in memory.
type Store interface {
	Insert(ctx context.Context, p Participant) (Participant, error)
	Get(ctx context.Context, id uuid.UUID) (Participant, error)
	IsAssigned(ctx context.Context, userID int64, subjectID uuid.UUID) (bool, error)
	Assign(ctx context.Context, userID int64, subjectID uuid.UUID) error
}

// Authorizer is the slice of the resolver this service needs.
type Authorizer interface {
	Authorize(ctx context.Context, actor *shared.Actor, key string, subject authz.Subject) (authz.Decision, error)
	FieldVisibility(ctx context.Context, actor *shared.Actor, subject authz.Subject, field string) (authz.FieldVisibility, error)
}

// DeniedError carries the resolver's guidance to the surface that must
// explain the denial.
type DeniedError struct {
	Decision authz.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("participants: access denied (%s)", e.Decision.Reason)
}

// GateRequiredError signals that the caller must obtain a grant first.
type GateRequiredError struct {
	Decision authz.Decision
}

func (e *GateRequiredError) Error() string {
	return "participants: gated access required"
}

// Service mediates every participant read and write through the
// resolver before the store is touched.
type Service struct {
	store Store
	authz Authorizer
}

// NewService constructs a Service.
func NewService(store Store, authorizer Authorizer) *Service {
	return &Service{store: store, authz: authorizer}
}

// Create records a new participant in a program.
func (s *Service) Create(ctx context.Context, actor *shared.Actor, p Participant) (Participant, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	subject := authz.Subject{ID: p.ID, ProgramID: p.ProgramID}
	if err := s.require(ctx, actor, authz.PermParticipantsEdit, subject); err != nil {
		return Participant{}, err
	}
	return s.store.Insert(ctx, p)
}

// Get fetches a participant with contact fields masked according to
// the actor's per-field visibility.
func (s *Service) Get(ctx context.Context, actor *shared.Actor, id uuid.UUID) (Participant, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Participant{}, err
	}
	subject := authz.Subject{ID: p.ID, ProgramID: p.ProgramID}
	if err := s.require(ctx, actor, authz.PermParticipantsView, subject); err != nil {
		return Participant{}, err
	}
	if err := s.applyFieldAccess(ctx, actor, subject, &p); err != nil {
		return Participant{}, err
	}
	return p, nil
}

// AssignCaseWorker links a staff user to a participant.
func (s *Service) AssignCaseWorker(ctx context.Context, actor *shared.Actor, userID int64, subjectID uuid.UUID) error {
	p, err := s.store.Get(ctx, subjectID)
	if err != nil {
		return err
	}
	subject := authz.Subject{ID: p.ID, ProgramID: p.ProgramID}
	if err := s.require(ctx, actor, authz.PermParticipantsEdit, subject); err != nil {
		return err
	}
	return s.store.Assign(ctx, userID, subjectID)
}

// IsAssigned answers scoped-permission checks for other services.
func (s *Service) IsAssigned(ctx context.Context, userID int64, subjectID uuid.UUID) (bool, error) {
	return s.store.IsAssigned(ctx, userID, subjectID)
}

// require runs the resolver and collapses its outcome into either nil
// (proceed) or a typed error the HTTP layer can explain.
func (s *Service) require(ctx context.Context, actor *shared.Actor, key string, subject authz.Subject) error {
	decision, err := s.authz.Authorize(ctx, actor, key, subject)
	if err != nil {
		return err
	}
	switch decision.Outcome {
	case authz.OutcomeAllow:
		return nil
	case authz.OutcomeScoped:
		assigned, err := s.store.IsAssigned(ctx, actor.ID, subject.ID)
		if err != nil {
			return err
		}
		if assigned {
			return nil
		}
		return &DeniedError{Decision: authz.Decision{
			Outcome:  authz.OutcomeDeny,
			Reason:   decision.Reason,
			Guidance: "Your role covers only participants assigned to you. Ask a supervisor to assign you to this participant.",
		}}
	case authz.OutcomeGated:
		return &GateRequiredError{Decision: decision}
	default:
		return &DeniedError{Decision: decision}
	}
}

func (s *Service) applyFieldAccess(ctx context.Context, actor *shared.Actor, subject authz.Subject, p *Participant) error {
	fields := []struct {
		name  string
		value *string
	}{
		{FieldPhone, &p.Phone},
		{FieldEmail, &p.Email},
		{FieldAddress, &p.Address},
	}
	for _, f := range fields {
		vis, err := s.authz.FieldVisibility(ctx, actor, subject, f.name)
		if err != nil {
			return err
		}
		if vis == authz.FieldHidden {
			*f.value = ""
		}
	}
	return nil
}
