package directory

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harborlight-hq/harborlight/internal/audit"
	"github.com/harborlight-hq/harborlight/internal/platform/httpx"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// Handler wires program and role-assignment administration. Mounted
// behind the directory.manage permission middleware; role changes are
// configuration, so the audit trail records each one.
type Handler struct {
	logger    *slog.Logger
	repo      *Repository
	recorder  *audit.Recorder
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo *Repository, recorder *audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo, recorder: recorder, validator: validator.New()}
}

// MountRoutes registers directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/programs", h.listPrograms)
	r.Post("/role-assignments", h.assign)
	r.Delete("/role-assignments", h.remove)
}

type programPayload struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) listPrograms(w http.ResponseWriter, r *http.Request) {
	programs, err := h.repo.ListPrograms(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payload := make([]programPayload, 0, len(programs))
	for _, p := range programs {
		payload = append(payload, programPayload{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"programs": payload})
}

type assignmentRequest struct {
	UserID    int64  `json:"user_id" validate:"required,gt=0"`
	ProgramID int64  `json:"program_id" validate:"required,gt=0"`
	Role      string `json:"role" validate:"required"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAssignment(w, r)
	if !ok {
		return
	}
	if err := h.repo.Assign(r.Context(), req.UserID, req.ProgramID, req.Role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.auditChange(r, "role.assign", req)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAssignment(w, r)
	if !ok {
		return
	}
	if err := h.repo.Remove(r.Context(), req.UserID, req.ProgramID, req.Role); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.auditChange(r, "role.remove", req)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeAssignment(w http.ResponseWriter, r *http.Request) (assignmentRequest, bool) {
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid body", err.Error())
		return assignmentRequest{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return assignmentRequest{}, false
	}
	return req, true
}

func (h *Handler) auditChange(r *http.Request, action string, req assignmentRequest) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		return
	}
	h.recorder.Record(r.Context(), audit.Entry{
		ActorID:      actor.ID,
		Action:       action,
		ResourceType: "role_assignment",
		ResourceID:   req.Role,
		Decision:     audit.DecisionOK,
		Meta: map[string]any{
			"user_id":    req.UserID,
			"program_id": req.ProgramID,
		},
	})
}
