package blocks

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/harborlight-hq/harborlight/internal/audit"
)

// Store abstracts persistence so the service can be tested in memory.
type Store interface {
	Insert(ctx context.Context, block Block) (Block, error)
	Lift(ctx context.Context, userID int64, subjectID uuid.UUID, liftedBy int64) error
	ActiveExists(ctx context.Context, userID int64, subjectID uuid.UUID) (bool, error)
	ListForSubject(ctx context.Context, subjectID uuid.UUID) ([]Block, error)
}

// Service orchestrates negative access blocks.
type Service struct {
	store    Store
	recorder *audit.Recorder
}

// NewService constructs a Service.
func NewService(store Store, recorder *audit.Recorder) *Service {
	return &Service{store: store, recorder: recorder}
}

// Block records an absolute denial for (user, subject). Both the
// creation and later lift are audited; the denials the block produces
// are audited by the resolver at decision time.
func (s *Service) Block(ctx context.Context, userID int64, subjectID uuid.UUID, reason string, createdBy int64) (Block, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Block{}, errors.New("blocks: reason required")
	}
	created, err := s.store.Insert(ctx, Block{
		ID:        uuid.New(),
		UserID:    userID,
		SubjectID: subjectID,
		Reason:    reason,
		CreatedBy: createdBy,
	})
	if err != nil {
		return Block{}, err
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:      createdBy,
		Action:       "block.create",
		ResourceType: "access_block",
		ResourceID:   created.ID.String(),
		Decision:     audit.DecisionOK,
		Meta: map[string]any{
			"blocked_user": userID,
			"subject_id":   subjectID.String(),
			"reason":       reason,
		},
	})
	return created, nil
}

// Lift removes the active block for the pair. The caller is
// responsible for having already authorized the elevated permission.
func (s *Service) Lift(ctx context.Context, userID int64, subjectID uuid.UUID, liftedBy int64) error {
	if err := s.store.Lift(ctx, userID, subjectID, liftedBy); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.Entry{
		ActorID:      liftedBy,
		Action:       "block.lift",
		ResourceType: "access_block",
		ResourceID:   subjectID.String(),
		Decision:     audit.DecisionOK,
		Meta: map[string]any{
			"blocked_user": userID,
			"subject_id":   subjectID.String(),
		},
	})
	return nil
}

// IsBlocked reports whether an active block exists for (user, subject).
// The resolver evaluates this before any other rule.
func (s *Service) IsBlocked(ctx context.Context, userID int64, subjectID uuid.UUID) (bool, error) {
	return s.store.ActiveExists(ctx, userID, subjectID)
}

// History returns all blocks recorded against a subject.
func (s *Service) History(ctx context.Context, subjectID uuid.UUID) ([]Block, error) {
	return s.store.ListForSubject(ctx, subjectID)
}
