package participants

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

// Handler wires participant endpoints.
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

// MountRoutes registers participant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/participants", h.create)
	r.Get("/participants/{id}", h.get)
	r.Post("/participants/{id}/assignments", h.assign)
}

type createRequest struct {
	ProgramID int64  `json:"program_id" validate:"required,gt=0"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone"`
	Email     string `json:"email" validate:"omitempty,email"`
	Address   string `json:"address"`
}

type participantPayload struct {
	ID        uuid.UUID `json:"id"`
	ProgramID int64     `json:"program_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toPayload(p Participant) participantPayload {
	return participantPayload{
		ID:        p.ID,
		ProgramID: p.ProgramID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Email:     p.Email,
		Address:   p.Address,
		CreatedAt: p.CreatedAt,
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
	created, err := h.service.Create(r.Context(), actor, Participant{
		ProgramID: req.ProgramID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPayload(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "participant id must be a UUID")
		return
	}
	p, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPayload(p))
}

type assignRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "participant id must be a UUID")
		return
	}
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AssignCaseWorker(r.Context(), actor, req.UserID, id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondServiceError translates resolver outcomes into responses that
// explain themselves: a denial carries the resolver's guidance, a gate
// tells the caller how to request a grant.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		httpx.Problem(w, http.StatusForbidden, "Access denied", denied.Decision.Guidance)
		return
	}
	var gated *GateRequiredError
	if errors.As(err, &gated) {
		httpx.Problem(w, http.StatusForbidden, "Gated access required", gated.Decision.Guidance)
		return
	}
	httpx.RespondError(w, err)
}
