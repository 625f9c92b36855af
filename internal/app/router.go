package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/harborlight-hq/harborlight/internal/alerts"
	"github.com/harborlight-hq/harborlight/internal/audit"
	audithttp "github.com/harborlight-hq/harborlight/internal/audit/http"
	"github.com/harborlight-hq/harborlight/internal/auth"
	"github.com/harborlight-hq/harborlight/internal/authz"
	"github.com/harborlight-hq/harborlight/internal/blocks"
	"github.com/harborlight-hq/harborlight/internal/consent"
	"github.com/harborlight-hq/harborlight/internal/directory"
	"github.com/harborlight-hq/harborlight/internal/grants"
	"github.com/harborlight-hq/harborlight/internal/notes"
	"github.com/harborlight-hq/harborlight/internal/observability"
	"github.com/harborlight-hq/harborlight/internal/participants"
	"github.com/harborlight-hq/harborlight/internal/platform/httpx"
	"github.com/harborlight-hq/harborlight/internal/shared"
	"github.com/harborlight-hq/harborlight/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthMiddleware  *auth.Middleware
	AuthzMiddleware authz.Middleware
	PolicyStore     *authz.PolicyStore
	Recorder        *audit.Recorder

	ParticipantsHandler *participants.Handler
	NotesHandler        *notes.Handler
	GrantsHandler       *grants.Handler
	BlocksHandler       *blocks.Handler
	ConsentHandler      *consent.Handler
	AlertsHandler       *alerts.Handler
	DirectoryHandler    *directory.Handler
	AuditHandler        *audithttp.Handler

	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with Harborlight defaults.
// Route-level permission middleware only gates configuration-level
// keys; subject-scoped checks stay inside the handlers where the
// subject is known.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(params.AuthMiddleware.RequireActor)

		params.ParticipantsHandler.MountRoutes(r)
		params.NotesHandler.MountRoutes(r)
		params.GrantsHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireAny(authz.PermBlocksManage))
			params.BlocksHandler.MountManageRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireAny(authz.PermBlocksLift))
			params.BlocksHandler.MountLiftRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireAny(authz.PermConsentManage))
			params.ConsentHandler.MountRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireAny(authz.PermAlertsCreate))
			params.AlertsHandler.MountCreateRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireAny(authz.PermAlertsCancel))
			params.AlertsHandler.MountCancelRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireAny(authz.PermAlertsResolveDirect))
			params.AlertsHandler.MountResolveRoutes(r)
		})

		params.AuditHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireAny(authz.PermDirectoryManage))
			params.DirectoryHandler.MountRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireAdmin())
			r.Post("/policy/reload", policyReloadHandler(params))
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}

// policyReloadHandler swaps the permission configuration in place and
// leaves a trace of who pulled the lever.
func policyReloadHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := shared.ActorFromContext(r.Context())
		if err := params.PolicyStore.Reload(); err != nil {
			params.Logger.Error("policy reload", slog.Any("error", err))
			params.Recorder.Record(r.Context(), audit.Entry{
				ActorID:      actor.ID,
				Action:       "policy.reload",
				ResourceType: "policy",
				Decision:     audit.DecisionError,
				Meta:         map[string]any{"error": err.Error()},
			})
			httpx.Problem(w, http.StatusUnprocessableEntity, "Policy reload failed", err.Error())
			return
		}
		version := params.PolicyStore.Version()
		params.Recorder.Record(r.Context(), audit.Entry{
			ActorID:      actor.ID,
			Action:       "policy.reload",
			ResourceType: "policy",
			Decision:     audit.DecisionOK,
			Meta:         map[string]any{"version": version},
		})
		httpx.JSON(w, http.StatusOK, map[string]any{"version": version})
	}
}
