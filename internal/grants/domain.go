package grants

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds a grant's life when configuration does not say
// otherwise.
const DefaultTTL = 8 * time.Hour

// Grant is a just-in-time, time-boxed permission to touch a gated
// category for one subject. It exists to leave a trail of why the data
// was viewed: creation requires a reason code and a written
// justification. The only state transition is expiry, evaluated at
// read time against the wall clock.
type Grant struct {
	ID            uuid.UUID
	UserID        int64
	SubjectID     uuid.UUID
	ReasonCode    string
	Justification string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// ValidAt reports whether the grant still governs at the given time.
func (g Grant) ValidAt(t time.Time) bool {
	return t.Before(g.ExpiresAt)
}

// ValidationError rejects a grant request before anything is persisted.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("grants: invalid %s: %s", e.Field, e.Detail)
}
