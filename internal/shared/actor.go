package shared

// Actor identifies the authenticated staff member performing a request.
// SystemAdmin covers configuration surfaces only; it never implies any
// access to participant data, which always flows from program role
// assignments.
type Actor struct {
	ID          int64
	Email       string
	SystemAdmin bool
}
