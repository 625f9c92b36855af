package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/harborlight-hq/harborlight/internal/platform/httpx"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// Handler wires safety alert endpoints. Creation and the two-person
// cancel sit behind different permission middleware; the identity rule
// itself is enforced in the service regardless of roles.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountCreateRoutes registers alert creation and listing.
func (h *Handler) MountCreateRoutes(r chi.Router) {
	r.Post("/alerts", h.create)
	r.Get("/participants/{id}/alerts", h.list)
}

// MountCancelRoutes registers the two-person cancel flow.
func (h *Handler) MountCancelRoutes(r chi.Router) {
	r.Post("/alerts/{id}/recommend-cancel", h.recommendCancel)
	r.Post("/alerts/{id}/approve-cancel", h.approveCancel)
	r.Post("/alerts/{id}/reject-cancel", h.rejectCancel)
}

// MountResolveRoutes registers the privileged one-step resolve.
func (h *Handler) MountResolveRoutes(r chi.Router) {
	r.Post("/alerts/{id}/resolve", h.resolveDirect)
}

type createRequest struct {
	SubjectID uuid.UUID `json:"subject_id" validate:"required"`
	Detail    string    `json:"detail" validate:"required"`
}

type alertPayload struct {
	ID                  uuid.UUID `json:"id"`
	SubjectID           uuid.UUID `json:"subject_id"`
	Status              string    `json:"status"`
	Detail              string    `json:"detail"`
	CreatedBy           int64     `json:"created_by"`
	CreatedAt           time.Time `json:"created_at"`
	CancelRecommendedBy *int64    `json:"cancel_recommended_by,omitempty"`
	CancelApprovedBy    *int64    `json:"cancel_approved_by,omitempty"`
}

func toPayload(a Alert) alertPayload {
	return alertPayload{
		ID:                  a.ID,
		SubjectID:           a.SubjectID,
		Status:              a.Status,
		Detail:              a.Detail,
		CreatedBy:           a.CreatedBy,
		CreatedAt:           a.CreatedAt,
		CancelRecommendedBy: a.CancelRecommendedBy,
		CancelApprovedBy:    a.CancelApprovedBy,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	alert, err := h.service.Create(r.Context(), req.SubjectID, req.Detail, actor.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPayload(alert))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "participant id must be a UUID")
		return
	}
	list, err := h.service.ListForSubject(r.Context(), subjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]alertPayload, 0, len(list))
	for _, a := range list {
		payload = append(payload, toPayload(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"alerts": payload})
}

func (h *Handler) recommendCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.RecommendCancel)
}

func (h *Handler) approveCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ApproveCancel)
}

func (h *Handler) rejectCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.RejectCancel)
}

func (h *Handler) resolveDirect(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ResolveDirect)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID, actorID int64) (Alert, error)) {
	actor := shared.ActorFromContext(r.Context())
	alertID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "alert id must be a UUID")
		return
	}
	alert, err := op(r.Context(), alertID, actor.ID)
	if err != nil {
		var violation *IntegrityRuleViolation
		if errors.As(err, &violation) {
			httpx.Problem(w, http.StatusConflict, "Two-person rule", violation.Rule)
			return
		}
		var invalid *InvalidTransitionError
		if errors.As(err, &invalid) {
			httpx.Problem(w, http.StatusConflict, "Invalid transition", invalid.Error())
			return
		}
		h.logger.Error("alert transition", slog.Int64("actor", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPayload(alert))
}
