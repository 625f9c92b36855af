package blocks

import (
	"time"

	"github.com/google/uuid"
)

// Block is an absolute per-user-per-subject denial. It overrides every
// role, grant, and administrative capability for that pair. Rows are
// never deleted; lifting records who removed it and when.
type Block struct {
	ID        uuid.UUID
	UserID    int64
	SubjectID uuid.UUID
	Reason    string
	CreatedBy int64
	CreatedAt time.Time
	LiftedAt  *time.Time
	LiftedBy  *int64
}

// Active reports whether the block still applies.
func (b Block) Active() bool {
	return b.LiftedAt == nil
}
