package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/harborlight-hq/harborlight/internal/platform/httpx"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

// Middleware resolves the Authorization header into an actor on the
// request context. Requests without a valid token are rejected before
// any handler runs.
type Middleware struct {
	service *Service
	logger  *slog.Logger
}

// NewMiddleware constructs the middleware.
func NewMiddleware(service *Service, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{service: service, logger: logger}
}

// RequireActor wraps handlers that need an authenticated staff user.
func (m *Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "a bearer token is required")
			return
		}
		actor, err := m.service.Authenticate(r.Context(), token)
		if err != nil {
			m.logger.Info("token rejected", slog.String("path", r.URL.Path))
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
