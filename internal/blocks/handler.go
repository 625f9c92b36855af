package blocks

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/harborlight-hq/harborlight/internal/platform/httpx"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// Handler wires access block endpoints. Routes are mounted behind the
// blocks.manage and blocks.lift permission middleware.
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

// MountManageRoutes registers block creation and history routes.
func (h *Handler) MountManageRoutes(r chi.Router) {
	r.Post("/blocks", h.create)
	r.Get("/participants/{id}/blocks", h.history)
}

// MountLiftRoutes registers the lift route, gated separately because
// removing a block is the more consequential act.
func (h *Handler) MountLiftRoutes(r chi.Router) {
	r.Post("/blocks/lift", h.lift)
}

type createRequest struct {
	UserID    int64     `json:"user_id" validate:"required,gt=0"`
	SubjectID uuid.UUID `json:"subject_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required"`
}

type blockPayload struct {
	ID        uuid.UUID  `json:"id"`
	UserID    int64      `json:"user_id"`
	SubjectID uuid.UUID  `json:"subject_id"`
	Reason    string     `json:"reason"`
	CreatedBy int64      `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	LiftedAt  *time.Time `json:"lifted_at,omitempty"`
	LiftedBy  *int64     `json:"lifted_by,omitempty"`
}

func toPayload(b Block) blockPayload {
	return blockPayload{
		ID:        b.ID,
		UserID:    b.UserID,
		SubjectID: b.SubjectID,
		Reason:    b.Reason,
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt,
		LiftedAt:  b.LiftedAt,
		LiftedBy:  b.LiftedBy,
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
	block, err := h.service.Block(r.Context(), req.UserID, req.SubjectID, req.Reason, actor.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPayload(block))
}

type liftRequest struct {
	UserID    int64     `json:"user_id" validate:"required,gt=0"`
	SubjectID uuid.UUID `json:"subject_id" validate:"required"`
}

func (h *Handler) lift(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req liftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Lift(r.Context(), req.UserID, req.SubjectID, actor.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	subjectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "participant id must be a UUID")
		return
	}
	history, err := h.service.History(r.Context(), subjectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]blockPayload, 0, len(history))
	for _, b := range history {
		payload = append(payload, toPayload(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"blocks": payload})
}
