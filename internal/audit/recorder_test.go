package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memSink struct {
	entries []Entry
	err     error
}

func (m *memSink) Insert(_ context.Context, entry Entry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func TestRecordSwallowsStorageFailure(t *testing.T) {
	sink := &memSink{err: errors.New("audit db down")}
	recorder := NewRecorder(sink, nil, nil)

	// Must not panic or propagate anything.
	recorder.Record(context.Background(), Entry{
		ActorID:      1,
		Action:       "note.create",
		ResourceType: "progress_note",
		ResourceID:   "abc",
		Decision:     DecisionOK,
	})
}

func TestRecordDecisionPropagatesFailure(t *testing.T) {
	sink := &memSink{err: errors.New("audit db down")}
	recorder := NewRecorder(sink, nil, nil)

	err := recorder.RecordDecision(context.Background(), Entry{
		ActorID:      1,
		Action:       "authz.decision",
		ResourceType: "participant",
		Decision:     DecisionDeny,
	})
	require.Error(t, err)
}

func TestWriteStampsOccurredAt(t *testing.T) {
	sink := &memSink{}
	recorder := NewRecorder(sink, nil, nil)
	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	recorder.now = func() time.Time { return fixed }

	recorder.Record(context.Background(), Entry{
		ActorID:      1,
		Action:       "grant.create",
		ResourceType: "access_grant",
		Decision:     DecisionOK,
	})
	require.Len(t, sink.entries, 1)
	require.Equal(t, fixed, sink.entries[0].OccurredAt)
}

func TestWriteRejectsIncompleteEntry(t *testing.T) {
	sink := &memSink{}
	recorder := NewRecorder(sink, nil, nil)

	err := recorder.RecordDecision(context.Background(), Entry{ActorID: 1, Decision: DecisionDeny})
	require.Error(t, err)
	require.Empty(t, sink.entries)
}

func TestNilRecorderIsInert(t *testing.T) {
	var recorder *Recorder
	recorder.Record(context.Background(), Entry{Action: "x", ResourceType: "y"})
	require.Error(t, recorder.RecordDecision(context.Background(), Entry{Action: "x", ResourceType: "y"}))
}
