package notes

import (
	"time"

	"github.com/google/uuid"
)

// Note categories. Health notes sit behind the gated permission.
const (
	CategoryGeneral = "general"
	CategoryHealth  = "health"
)

// Note is a progress note authored within one program. Notes are the
// clinical content the consent filter judges, so the type knows its
// subject and authoring program.
type Note struct {
	ID        uuid.UUID
	SubjectID uuid.UUID
	ProgramID int64
	Category  string
	AuthorID  int64
	Body      string
	CreatedAt time.Time
}

// ItemSubject implements consent.Item.
func (n Note) ItemSubject() uuid.UUID { return n.SubjectID }

// ItemProgram implements consent.Item.
func (n Note) ItemProgram() int64 { return n.ProgramID }

// View is one note as a caller may see it. A gated note keeps its
// metadata but exposes no body until a grant is recorded.
type View struct {
	Note     Note
	Gated    bool
	Guidance string
}
