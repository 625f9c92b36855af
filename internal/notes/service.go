package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/harborlight-hq/harborlight/internal/authz"
	"github.com/harborlight-hq/harborlight/internal/consent"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// Store abstracts persistence so the service can be tested in memory.
type Store interface {
	Insert(ctx context.Context, n Note) (Note, error)
	ListForSubject(ctx context.Context, subjectID uuid.UUID) ([]Note, error)
	CountForSubject(ctx context.Context, subjectID uuid.UUID) (int, error)
}

// Authorizer is the slice of the resolver this service needs.
type Authorizer interface {
	Authorize(ctx context.Context, actor *shared.Actor, key string, subject authz.Subject) (authz.Decision, error)
	HoldsPermission(ctx context.Context, userID int64, key string) (bool, error)
}

// ProgramSource yields the viewer's program memberships for the
// consent filter.
type ProgramSource interface {
	ProgramsFor(ctx context.Context, userID int64) ([]int64, error)
}

// AssignmentSource answers the individual-assignment question behind
// scoped outcomes.
type AssignmentSource interface {
	IsAssigned(ctx context.Context, userID int64, subjectID uuid.UUID) (bool, error)
}

// DeniedError carries the resolver's guidance to the surface that must
// explain the denial.
type DeniedError struct {
	Decision authz.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("notes: access denied (%s)", e.Decision.Reason)
}

// ValidationError rejects a note before anything is persisted.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("notes: invalid %s: %s", e.Field, e.Detail)
}

// Service mediates note reads and writes. Reads run the full pipeline:
// consent filter first, then per-note permission resolution.
type Service struct {
	store       Store
	authz       Authorizer
	filter      *consent.Filter
	programs    ProgramSource
	assignments AssignmentSource
}

// NewService constructs a Service.
func NewService(store Store, authorizer Authorizer, filter *consent.Filter, programs ProgramSource, assignments AssignmentSource) *Service {
	return &Service{
		store:       store,
		authz:       authorizer,
		filter:      filter,
		programs:    programs,
		assignments: assignments,
	}
}

// Create authors a note in a program.
func (s *Service) Create(ctx context.Context, actor *shared.Actor, n Note) (Note, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.Category = strings.TrimSpace(n.Category)
	if n.Category == "" {
		n.Category = CategoryGeneral
	}
	if n.Category != CategoryGeneral && n.Category != CategoryHealth {
		return Note{}, &ValidationError{Field: "category", Detail: "unknown category"}
	}
	if strings.TrimSpace(n.Body) == "" {
		return Note{}, &ValidationError{Field: "body", Detail: "required"}
	}
	subject := authz.Subject{ID: n.SubjectID, ProgramID: n.ProgramID}
	decision, err := s.authz.Authorize(ctx, actor, authz.PermNotesEdit, subject)
	if err != nil {
		return Note{}, err
	}
	switch decision.Outcome {
	case authz.OutcomeAllow:
	case authz.OutcomeScoped:
		assigned, err := s.assignments.IsAssigned(ctx, actor.ID, n.SubjectID)
		if err != nil {
			return Note{}, err
		}
		if !assigned {
			return Note{}, &DeniedError{Decision: authz.Decision{
				Outcome:  authz.OutcomeDeny,
				Reason:   decision.Reason,
				Guidance: "You can only write notes for participants assigned to you.",
			}}
		}
	default:
		return Note{}, &DeniedError{Decision: decision}
	}
	n.AuthorID = actor.ID
	return s.store.Insert(ctx, n)
}

// ListForSubject returns the notes the actor may see for one subject
// across every program. The consent filter runs first so no
// cross-program content reaches the permission stage; gated categories
// come back as placeholders without a body.
func (s *Service) ListForSubject(ctx context.Context, actor *shared.Actor, subjectID uuid.UUID) ([]View, error) {
	if actor == nil {
		return nil, shared.ErrUnauthenticated
	}
	viewerPrograms, err := s.programs.ProgramsFor(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListForSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	visible, err := consent.Apply(ctx, s.filter, all, viewerPrograms)
	if err != nil {
		return nil, err
	}

	// Decisions repeat per (key, program) pair; resolve each once.
	type decisionKey struct {
		key     string
		program int64
	}
	decisions := make(map[decisionKey]authz.Decision)
	assigned := -1 // lazily resolved tri-state

	var out []View
	for _, n := range visible {
		key := authz.PermNotesView
		if n.Category == CategoryHealth {
			key = authz.PermNotesHealthView
		}
		dk := decisionKey{key: key, program: n.ProgramID}
		decision, ok := decisions[dk]
		if !ok {
			decision, err = s.authz.Authorize(ctx, actor, key, authz.Subject{ID: subjectID, ProgramID: n.ProgramID})
			if err != nil {
				return nil, err
			}
			decisions[dk] = decision
		}
		switch decision.Outcome {
		case authz.OutcomeAllow:
			out = append(out, View{Note: n})
		case authz.OutcomeScoped:
			if assigned < 0 {
				ok, err := s.assignments.IsAssigned(ctx, actor.ID, subjectID)
				if err != nil {
					return nil, err
				}
				assigned = 0
				if ok {
					assigned = 1
				}
			}
			if assigned == 1 {
				out = append(out, View{Note: n})
			}
		case authz.OutcomeGated:
			n.Body = ""
			out = append(out, View{Note: n, Gated: true, Guidance: decision.Guidance})
		}
	}
	return out, nil
}

// CountForSubject returns the de-identified note count. Counts carry a
// number and never content, so they bypass the consent filter; the
// actor still needs the view permission somewhere.
func (s *Service) CountForSubject(ctx context.Context, actor *shared.Actor, subjectID uuid.UUID) (int, error) {
	if actor == nil {
		return 0, shared.ErrUnauthenticated
	}
	holds, err := s.authz.HoldsPermission(ctx, actor.ID, authz.PermNotesView)
	if err != nil {
		return 0, err
	}
	if !holds {
		return 0, shared.ErrForbidden
	}
	return s.store.CountForSubject(ctx, subjectID)
}
