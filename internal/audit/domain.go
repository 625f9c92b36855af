package audit

import "time"

// Decision values recorded with an audit entry.
const (
	DecisionAllow  = "allow"
	DecisionDeny   = "deny"
	DecisionScoped = "scoped"
	DecisionGated  = "gated"
	DecisionOK     = "ok"
	DecisionError  = "error"
)

// Entry is one append-only audit record. The storage principal behind
// the store holds INSERT and SELECT only, so an entry can never be
// rewritten by the application's own credentials.
type Entry struct {
	OccurredAt   time.Time
	ActorID      int64
	Action       string
	ResourceType string
	ResourceID   string
	Decision     string
	Meta         map[string]any
}

// TimelineFilters menampung filter dasar untuk audit timeline.
type TimelineFilters struct {
	From         time.Time
	To           time.Time
	ActorID      int64
	ResourceType string
	ResourceID   string
	Action       string
	Page         int
	PageSize     int
}

// TimelineRow mewakili satu baris audit timeline.
type TimelineRow struct {
	At           time.Time
	ActorID      int64
	Action       string
	ResourceType string
	ResourceID   string
	Decision     string
	Meta         map[string]any
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// Result membungkus hasil timeline dengan informasi paging.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}
