package grants

import (
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

// Handler wires the gated access grant endpoint.
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

// MountRoutes registers grant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/grants", h.request)
}

type requestBody struct {
	SubjectID     uuid.UUID `json:"subject_id" validate:"required"`
	ReasonCode    string    `json:"reason_code" validate:"required"`
	Justification string    `json:"justification" validate:"required"`
}

type grantPayload struct {
	ID         uuid.UUID `json:"id"`
	SubjectID  uuid.UUID `json:"subject_id"`
	ReasonCode string    `json:"reason_code"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// request records a grant for the calling actor. A grant always
// belongs to the person who asked for it; nobody requests gated access
// on someone else's behalf.
func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}
	var req requestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	grant, err := h.service.Request(r.Context(), actor.ID, req.SubjectID, req.ReasonCode, req.Justification)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
			return
		}
		h.logger.Error("grant request", slog.Int64("actor", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grantPayload{
		ID:         grant.ID,
		SubjectID:  grant.SubjectID,
		ReasonCode: grant.ReasonCode,
		ExpiresAt:  grant.ExpiresAt,
	})
}
