package notes

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

// Handler wires progress note endpoints.
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

// MountRoutes registers note routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/notes", h.create)
	r.Get("/participants/{id}/notes", h.list)
	r.Get("/participants/{id}/notes/count", h.count)
}

type createRequest struct {
	SubjectID uuid.UUID `json:"subject_id" validate:"required"`
	ProgramID int64     `json:"program_id" validate:"required,gt=0"`
	Category  string    `json:"category"`
	Body      string    `json:"body" validate:"required"`
}

type notePayload struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	ProgramID int64     `json:"program_id"`
	Category  string    `json:"category"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Gated     bool      `json:"gated,omitempty"`
	Guidance  string    `json:"guidance,omitempty"`
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
	created, err := h.service.Create(r.Context(), actor, Note{
		SubjectID: req.SubjectID,
		ProgramID: req.ProgramID,
		Category:  req.Category,
		Body:      req.Body,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, notePayload{
		ID:        created.ID,
		SubjectID: created.SubjectID,
		ProgramID: created.ProgramID,
		Category:  created.Category,
		AuthorID:  created.AuthorID,
		Body:      created.Body,
		CreatedAt: created.CreatedAt,
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	subjectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "participant id must be a UUID")
		return
	}
	views, err := h.service.ListForSubject(r.Context(), actor, subjectID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	payload := make([]notePayload, 0, len(views))
	for _, v := range views {
		payload = append(payload, notePayload{
			ID:        v.Note.ID,
			SubjectID: v.Note.SubjectID,
			ProgramID: v.Note.ProgramID,
			Category:  v.Note.Category,
			AuthorID:  v.Note.AuthorID,
			Body:      v.Note.Body,
			CreatedAt: v.Note.CreatedAt,
			Gated:     v.Gated,
			Guidance:  v.Guidance,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notes": payload})
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	subjectID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", "participant id must be a UUID")
		return
	}
	count, err := h.service.CountForSubject(r.Context(), actor, subjectID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		httpx.Problem(w, http.StatusForbidden, "Access denied", denied.Decision.Guidance)
		return
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", verr.Error())
		return
	}
	httpx.RespondError(w, err)
}
