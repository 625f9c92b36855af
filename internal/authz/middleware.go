package authz

import (
	"log/slog"
	"net/http"

	"github.com/harborlight-hq/harborlight/internal/shared"
)

// Middleware wires configuration-level permission checks for HTTP
// handlers. Subject-scoped decisions never run here; they go through
// Resolver.Authorize inside the handler with the subject in hand.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireAny ensures the current actor holds at least one of the keys
// in some program.
func (m Middleware) RequireAny(keys ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, key := range keys {
				ok, err := m.Resolver.HoldsPermission(r.Context(), actor.ID, key)
				if err != nil {
					if m.Logger != nil {
						m.Logger.Error("permission check", slog.String("key", key), slog.Any("error", err))
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAdmin gates configuration surfaces on the system-admin flag.
// It grants no subject data: handlers behind it still authorize every
// data touch through the Resolver, where the flag counts for nothing.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := shared.ActorFromContext(r.Context())
			if actor == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !actor.SystemAdmin {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
