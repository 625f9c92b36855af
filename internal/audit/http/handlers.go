package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/harborlight-hq/harborlight/internal/audit"
	"github.com/harborlight-hq/harborlight/internal/platform/httpx"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

const (
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
}

// PermissionSource resolves config-level permissions for the actor.
type PermissionSource interface {
	HoldsPermission(ctx context.Context, userID int64, key string) (bool, error)
}

// PermAuditView gates the audit timeline and export endpoints.
const PermAuditView = "audit.view"

// Handler menangani permintaan audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	perms   PermissionSource
	now     func() time.Time
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TimelineService, perms PermissionSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, perms: perms, now: time.Now}
}

type timelineRowPayload struct {
	OccurredAt   time.Time      `json:"occurred_at"`
	ActorID      int64          `json:"actor_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Decision     string         `json:"decision"`
	Meta         map[string]any `json:"meta,omitempty"`
}

type timelinePayload struct {
	Rows     []timelineRowPayload `json:"rows"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	HasNext  bool                 `json:"has_next"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r)
	if !ok {
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid filters", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Int64("actor", actor.ID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Audit timeline unavailable", "")
		return
	}
	payload := timelinePayload{
		Rows:     make([]timelineRowPayload, 0, len(result.Rows)),
		Page:     result.Paging.Page,
		PageSize: result.Paging.PageSize,
		HasNext:  result.Paging.HasNext,
	}
	for _, row := range result.Rows {
		payload.Rows = append(payload.Rows, timelineRowPayload{
			OccurredAt:   row.At,
			ActorID:      row.ActorID,
			Action:       row.Action,
			ResourceType: row.ResourceType,
			ResourceID:   row.ResourceID,
			Decision:     row.Decision,
			Meta:         row.Meta,
		})
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.authorize(w, r)
	if !ok {
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid filters", err.Error())
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Int64("actor", actor.ID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Audit export unavailable", "")
		return
	}
	data, err := audit.WriteCSV(rows)
	if err != nil {
		h.logger.Error("encode audit csv", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Audit export unavailable", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit_timeline.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (*shared.Actor, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Authentication required", "")
		return nil, false
	}
	ok, err := h.perms.HoldsPermission(r.Context(), actor.ID, PermAuditView)
	if err != nil {
		h.logger.Error("audit permission lookup", slog.Int64("actor", actor.ID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Permission lookup failed", "")
		return nil, false
	}
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Audit access denied",
			"Your roles do not include audit.view. Ask a supervisor to grant an auditing role.")
		return nil, false
	}
	return actor, true
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now()
	filters := audit.TimelineFilters{
		From:         now.Add(-defaultDateRange),
		To:           now,
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Action:       q.Get("action"),
	}
	if raw := q.Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.TimelineFilters{}, err
		}
		filters.From = parsed
	}
	if raw := q.Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.TimelineFilters{}, err
		}
		filters.To = parsed
	}
	if filters.To.Sub(filters.From) > maxDateRangeHours*time.Hour {
		filters.From = filters.To.Add(-maxDateRangeHours * time.Hour)
	}
	if raw := q.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return audit.TimelineFilters{}, err
		}
		filters.ActorID = id
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return audit.TimelineFilters{}, err
		}
		filters.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return audit.TimelineFilters{}, err
		}
		filters.PageSize = size
	}
	return filters, nil
}
