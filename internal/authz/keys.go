package authz

// Permission keys recognised by the kernel. The category each role
// holds for a key (allow/scoped/gated) lives in the policy file, not
// here; code only names the actions it asks about.
const (
	PermParticipantsView = "participants.view"
	PermParticipantsEdit = "participants.edit"

	PermNotesView       = "notes.view"
	PermNotesEdit       = "notes.edit"
	PermNotesHealthView = "notes.health.view"

	PermAlertsCreate        = "alerts.create"
	PermAlertsCancel        = "alerts.cancel"
	PermAlertsResolveDirect = "alerts.resolve_direct"

	PermBlocksManage = "blocks.manage"
	PermBlocksLift   = "blocks.lift"

	PermConsentManage = "consent.manage"

	PermAuditView = "audit.view"

	PermDirectoryManage = "directory.manage"
)
