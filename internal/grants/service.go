package grants

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harborlight-hq/harborlight/internal/audit"
)

// Store abstracts persistence so the service can be tested in memory.
type Store interface {
	Upsert(ctx context.Context, grant Grant) (Grant, error)
	Find(ctx context.Context, userID int64, subjectID uuid.UUID) (Grant, bool, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service issues and validates gated access grants.
type Service struct {
	store    Store
	recorder *audit.Recorder
	ttl      time.Duration
	now      func() time.Time
}

// NewService constructs a Service. A non-positive ttl falls back to
// DefaultTTL.
func NewService(store Store, recorder *audit.Recorder, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:    store,
		recorder: recorder,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Request creates or refreshes a grant. An empty justification is
// rejected before anything touches storage: the written reason is the
// point of the gated flow, not an optional nicety.
func (s *Service) Request(ctx context.Context, userID int64, subjectID uuid.UUID, reasonCode, justification string) (Grant, error) {
	reasonCode = strings.TrimSpace(reasonCode)
	justification = strings.TrimSpace(justification)
	if reasonCode == "" {
		return Grant{}, &ValidationError{Field: "reason_code", Detail: "required"}
	}
	if justification == "" {
		return Grant{}, &ValidationError{Field: "justification", Detail: "a short written reason is required"}
	}
	now := s.now()
	grant, err := s.store.Upsert(ctx, Grant{
		ID:            uuid.New(),
		UserID:        userID,
		SubjectID:     subjectID,
		ReasonCode:    reasonCode,
		Justification: justification,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	})
	if err != nil {
		return Grant{}, err
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:      userID,
		Action:       "grant.create",
		ResourceType: "access_grant",
		ResourceID:   grant.ID.String(),
		Decision:     audit.DecisionOK,
		Meta: map[string]any{
			"subject_id":  subjectID.String(),
			"reason_code": reasonCode,
			"expires_at":  grant.ExpiresAt,
		},
	})
	return grant, nil
}

// HasValidGrant reports whether a live grant covers (user, subject).
// Expiry is compared against the clock here, at read time; nothing
// sweeps grants for correctness.
func (s *Service) HasValidGrant(ctx context.Context, userID int64, subjectID uuid.UUID) (bool, error) {
	grant, ok, err := s.store.Find(ctx, userID, subjectID)
	if err != nil {
		return false, err
	}
	return ok && grant.ValidAt(s.now()), nil
}

// ValidGrant returns the live grant for (user, subject) when one exists.
func (s *Service) ValidGrant(ctx context.Context, userID int64, subjectID uuid.UUID) (Grant, bool, error) {
	grant, ok, err := s.store.Find(ctx, userID, subjectID)
	if err != nil {
		return Grant{}, false, err
	}
	if !ok || !grant.ValidAt(s.now()) {
		return Grant{}, false, nil
	}
	return grant, true, nil
}

// SweepExpired reclaims storage for long-expired rows.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}
