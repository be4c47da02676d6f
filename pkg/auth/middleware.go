package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/focusforward/caseguard/pkg/api/problem"
	"github.com/focusforward/caseguard/pkg/privacy"
)

// public lists the paths served without a token.
var public = map[string]bool{"/health": true}

// NewMiddleware authenticates bearer tokens. A nil validator rejects every
// non-public request.
func NewMiddleware(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				problem.Unauthorized(w, r, "Missing Authorization header")
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				problem.Unauthorized(w, r, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}
			if validator == nil {
				problem.Unauthorized(w, r, "Authentication not configured")
				return
			}

			p, err := validator.Validate(r.Context(), strings.TrimSpace(token))
			if err != nil {
				logger.InfoContext(r.Context(), "token rejected",
					"request_id", RequestIDFrom(r.Context()), "error", privacy.Scrub(err.Error()))
				problem.Unauthorized(w, r, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
