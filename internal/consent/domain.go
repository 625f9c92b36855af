package consent

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Scope names a directed sharing edge: content authored in FromProgram
// becomes visible to staff of ToProgram.
type Scope struct {
	FromProgram int64
	ToProgram   int64
}

// Record is one immutable consent event for a (subject, scope) pair.
// History is never edited: a correction is a new record carrying
// WithdrawnAt. Current state is a pure function over the ordered
// sequence, which keeps the fail-closed property trivial to verify.
type Record struct {
	ID          uuid.UUID
	SubjectID   uuid.UUID
	Scope       Scope
	ConsentType string
	GrantedAt   time.Time
	WithdrawnAt *time.Time
	CreatedAt   time.Time
}

// CurrentState reduces a subject's consent history to the set of
// scopes currently consented: for each scope the most recent record
// governs, and it grants only when it carries no withdrawal.
func CurrentState(records []Record) map[Scope]bool {
	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})
	state := make(map[Scope]bool)
	for _, rec := range ordered {
		state[rec.Scope] = rec.WithdrawnAt == nil
	}
	return state
}
