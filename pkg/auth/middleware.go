package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lumen-ed/compass/pkg/config"
)

// Middleware enforces bearer-token authentication per the auth config.
// Excluded paths pass through untouched. A missing token is a 401 when
// auth is required and an anonymous pass-through when it is not; a token
// that is present but invalid is always a 401.
func Middleware(validator *Validator, cfg *config.AuthConfig) func(http.Handler) http.Handler {
	if validator == nil || !cfg.IsEnabled() {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	excluded := make(map[string]struct{}, len(cfg.ExcludedPaths))
	for _, path := range cfg.ExcludedPaths {
		excluded[path] = struct{}{}
	}
	required := cfg.IsRequireAuth()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := excluded[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				if required {
					writeUnauthorized(w, "missing bearer token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			raw := strings.TrimPrefix(header, "Bearer ")
			if raw == header {
				writeUnauthorized(w, "authorization header must be: Bearer <token>")
				return
			}

			claims, err := validator.Validate(raw)
			if err != nil {
				slog.Warn("Token validation failed", "path", r.URL.Path, "error", err)
				writeUnauthorized(w, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole replies 403 unless the caller's validated claims carry one of
// the given roles. Requests without claims pass through: they only reach a
// handler when bearer auth is disabled or optional, and this middleware
// restricts authenticated callers rather than re-deciding whether anonymous
// access is allowed.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims != nil && !claims.HasAnyRole(roles...) {
				slog.Warn("Role check failed",
					"path", r.URL.Path,
					"subject", claims.Subject,
					"role", claims.Role)
				writeJSONError(w, http.StatusForbidden, "caller role does not permit this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, message)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
