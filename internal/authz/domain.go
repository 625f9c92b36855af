package authz

import "github.com/google/uuid"

// Outcome classifies an authorization decision.
type Outcome string

const (
	// OutcomeAllow permits the action outright.
	OutcomeAllow Outcome = "allow"
	// OutcomeDeny refuses the action; nothing the caller does changes it.
	OutcomeDeny Outcome = "deny"
	// OutcomeScoped permits the action only for subjects the user is
	// individually assigned to. The assignment check is the caller's,
	// so the resolver stays ignorant of every subject type.
	OutcomeScoped Outcome = "scoped"
	// OutcomeGated means the action needs a just-in-time grant the
	// user does not currently hold.
	OutcomeGated Outcome = "gated"
)

// Reason codes attached to decisions.
const (
	ReasonRestricted    = "restricted"
	ReasonNoRole        = "no_role"
	ReasonConfiguration = "configuration"
	ReasonGrantRequired = "grant_required"
	ReasonGranted       = "granted"
	ReasonRole          = "role"
)

// Decision is the resolver's answer for one (actor, action, subject)
// triple. Guidance carries the user-facing explanation for anything
// short of a plain allow: what happened and what the user can do next.
type Decision struct {
	Outcome  Outcome
	Reason   string
	Guidance string
}

// Allowed reports whether the caller may proceed unconditionally.
func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// Subject locates the participant record an action touches: the
// participant and the program context the data lives in.
type Subject struct {
	ID        uuid.UUID
	ProgramID int64
}
