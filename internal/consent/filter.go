package consent

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Item is any piece of clinical content the filter can judge: it knows
// which subject it belongs to and which program authored it.
type Item interface {
	ItemSubject() uuid.UUID
	ItemProgram() int64
}

// HistorySource loads consent history for a subject.
type HistorySource interface {
	HistoryFor(ctx context.Context, subjectID uuid.UUID) ([]Record, error)
}

// Filter decides cross-program visibility of clinical content. It runs
// at the query layer, before any per-item permission check, so a
// missed downstream check cannot leak cross-program content.
//
// The keep decision fails closed: an item survives only when a
// positive rule matches, either authored in one of the viewer's
// programs or covered by a current consent scope. Missing history, a
// failed lookup, an unknown program all exclude the item. There is
// deliberately no include-on-error branch.
type Filter struct {
	source HistorySource
	logger *slog.Logger
}

// NewFilter constructs a Filter.
func NewFilter(source HistorySource, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{source: source, logger: logger}
}

// Apply returns the subset of items visible to a viewer holding the
// given program memberships. Item order is preserved.
func Apply[T Item](ctx context.Context, f *Filter, items []T, viewerPrograms []int64) ([]T, error) {
	if len(items) == 0 {
		return nil, nil
	}
	member := make(map[int64]struct{}, len(viewerPrograms))
	for _, p := range viewerPrograms {
		member[p] = struct{}{}
	}

	// Consent state per subject, loaded once per distinct subject.
	states := make(map[uuid.UUID]map[Scope]bool)

	kept := make([]T, 0, len(items))
	for _, item := range items {
		if _, ok := member[item.ItemProgram()]; ok {
			kept = append(kept, item)
			continue
		}
		state, ok := states[item.ItemSubject()]
		if !ok {
			history, err := f.source.HistoryFor(ctx, item.ItemSubject())
			if err != nil {
				// Indeterminate state. The item is excluded, the
				// request itself continues.
				f.logger.Warn("consent history unavailable, excluding item",
					slog.String("subject_id", item.ItemSubject().String()),
					slog.Any("error", err),
				)
				states[item.ItemSubject()] = map[Scope]bool{}
				continue
			}
			state = CurrentState(history)
			states[item.ItemSubject()] = state
		}
		if consented(state, item.ItemProgram(), viewerPrograms) {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

func consented(state map[Scope]bool, fromProgram int64, viewerPrograms []int64) bool {
	for _, to := range viewerPrograms {
		if state[Scope{FromProgram: fromProgram, ToProgram: to}] {
			return true
		}
	}
	return false
}

// The exemptions below are the only sanctioned bypasses. Each is
// narrow by construction: nothing individually identifying can flow
// through them.

// AggregateCount is exempt from filtering: it carries a number, never
// content.
func AggregateCount[T Item](items []T) int {
	return len(items)
}

// SingleProgramScoped reports whether every item was authored in the
// one given program, making a plan-level view safe to render without
// the filter.
func SingleProgramScoped[T Item](items []T, programID int64) bool {
	for _, item := range items {
		if item.ItemProgram() != programID {
			return false
		}
	}
	return true
}
