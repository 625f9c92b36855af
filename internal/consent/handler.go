package consent

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

// Handler wires consent endpoints. Mounted behind the consent.manage
// permission middleware.
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

// MountRoutes registers consent routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/consents", h.grant)
	r.Post("/consents/withdraw", h.withdraw)
	r.Get("/participants/{id}/consents", h.history)
}

type eventRequest struct {
	SubjectID   uuid.UUID `json:"subject_id" validate:"required"`
	FromProgram int64     `json:"from_program" validate:"required,gt=0"`
	ToProgram   int64     `json:"to_program" validate:"required,gt=0"`
	ConsentType string    `json:"consent_type" validate:"required"`
}

type recordPayload struct {
	ID          uuid.UUID  `json:"id"`
	SubjectID   uuid.UUID  `json:"subject_id"`
	FromProgram int64      `json:"from_program"`
	ToProgram   int64      `json:"to_program"`
	ConsentType string     `json:"consent_type"`
	GrantedAt   time.Time  `json:"granted_at"`
	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toPayload(rec Record) recordPayload {
	return recordPayload{
		ID:          rec.ID,
		SubjectID:   rec.SubjectID,
		FromProgram: rec.Scope.FromProgram,
		ToProgram:   rec.Scope.ToProgram,
		ConsentType: rec.ConsentType,
		GrantedAt:   rec.GrantedAt,
		WithdrawnAt: rec.WithdrawnAt,
		CreatedAt:   rec.CreatedAt,
	}
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	h.append(w, r, false)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	h.append(w, r, true)
}

func (h *Handler) append(w http.ResponseWriter, r *http.Request, withdraw bool) {
	actor := shared.ActorFromContext(r.Context())
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	scope := Scope{FromProgram: req.FromProgram, ToProgram: req.ToProgram}
	var rec Record
	var err error
	if withdraw {
		rec, err = h.service.Withdraw(r.Context(), actor.ID, req.SubjectID, scope, req.ConsentType)
	} else {
		rec, err = h.service.Grant(r.Context(), actor.ID, req.SubjectID, scope, req.ConsentType)
	}
	if err != nil {
		h.logger.Error("append consent event", slog.Int64("actor", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPayload(rec))
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
	payload := make([]recordPayload, 0, len(history))
	for _, rec := range history {
		payload = append(payload, toPayload(rec))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": payload})
}
