package participants

import (
	"time"

	"github.com/google/uuid"
)

// Contact field names governed by the per-field access table.
const (
	FieldPhone   = "participants.phone"
	FieldEmail   = "participants.email"
	FieldAddress = "participants.address"
)

// Participant is a person receiving services, managed by one program.
// Contact fields are encrypted at rest; the repository seals and opens
// them so nothing above it ever sees ciphertext.
type Participant struct {
	ID        uuid.UUID
	ProgramID int64
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Address   string
	CreatedAt time.Time
}

// Assignment links a staff user to a participant as their case worker.
// Scoped permissions resolve against these rows.
type Assignment struct {
	UserID    int64
	SubjectID uuid.UUID
	CreatedAt time.Time
}
