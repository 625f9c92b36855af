package blocks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harborlight-hq/harborlight/internal/audit"
)

type memStore struct {
	blocks []Block
}

func (m *memStore) Insert(_ context.Context, block Block) (Block, error) {
	block.CreatedAt = time.Now()
	m.blocks = append(m.blocks, block)
	return block, nil
}

func (m *memStore) Lift(_ context.Context, userID int64, subjectID uuid.UUID, liftedBy int64) error {
	for i, block := range m.blocks {
		if block.UserID == userID && block.SubjectID == subjectID && block.Active() {
			now := time.Now()
			m.blocks[i].LiftedAt = &now
			m.blocks[i].LiftedBy = &liftedBy
		}
	}
	return nil
}

func (m *memStore) ActiveExists(_ context.Context, userID int64, subjectID uuid.UUID) (bool, error) {
	for _, block := range m.blocks {
		if block.UserID == userID && block.SubjectID == subjectID && block.Active() {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListForSubject(_ context.Context, subjectID uuid.UUID) ([]Block, error) {
	var out []Block
	for _, block := range m.blocks {
		if block.SubjectID == subjectID {
			out = append(out, block)
		}
	}
	return out, nil
}

type memSink struct {
	entries []audit.Entry
}

func (m *memSink) Insert(_ context.Context, entry audit.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func TestBlockRequiresReason(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, audit.NewRecorder(&memSink{}, nil, nil))

	_, err := svc.Block(context.Background(), 7, uuid.New(), "  ", 1)
	require.Error(t, err)
	require.Empty(t, store.blocks)
}

func TestBlockAndLiftAreAudited(t *testing.T) {
	store := &memStore{}
	sink := &memSink{}
	svc := NewService(store, audit.NewRecorder(sink, nil, nil))
	subject := uuid.New()

	_, err := svc.Block(context.Background(), 7, subject, "former household member", 1)
	require.NoError(t, err)

	blocked, err := svc.IsBlocked(context.Background(), 7, subject)
	require.NoError(t, err)
	require.True(t, blocked)

	require.NoError(t, svc.Lift(context.Background(), 7, subject, 2))
	blocked, err = svc.IsBlocked(context.Background(), 7, subject)
	require.NoError(t, err)
	require.False(t, blocked)

	require.Len(t, sink.entries, 2)
	require.Equal(t, "block.create", sink.entries[0].Action)
	require.Equal(t, "block.lift", sink.entries[1].Action)
}

func TestHistoryKeepsLiftedBlocks(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, audit.NewRecorder(&memSink{}, nil, nil))
	subject := uuid.New()

	_, err := svc.Block(context.Background(), 7, subject, "conflict of interest", 1)
	require.NoError(t, err)
	require.NoError(t, svc.Lift(context.Background(), 7, subject, 2))

	history, err := svc.History(context.Background(), subject)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.False(t, history[0].Active())
	require.EqualValues(t, 2, *history[0].LiftedBy)
}
