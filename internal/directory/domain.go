package directory

import "time"

// Program is a service program participants enroll in.
type Program struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// RoleAssignment ties a staff user to a role within one program. A
// user may hold different roles in different programs; data access
// always flows from these rows, never from the admin flag.
type RoleAssignment struct {
	UserID    int64
	ProgramID int64
	Role      string
	CreatedAt time.Time
}

// User is a staff account. SystemAdmin governs configuration screens
// only and is orthogonal to participant data access.
type User struct {
	ID          int64
	Email       string
	Name        string
	TokenHash   string
	SystemAdmin bool
	IsActive    bool
	CreatedAt   time.Time
}
