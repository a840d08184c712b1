package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/metalyard/metalyard/internal/platform/httpx"
	"github.com/metalyard/metalyard/internal/shared"
)

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// Middleware verifies the bearer token on every request and stores the tenant in context.
func Middleware(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				httpx.RespondError(w, ErrMissingToken)
				return
			}
			ident, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if shared.KindOf(err) != shared.KindUnauthorized {
					logger.Warn("verify token",
						slog.Any("error", err),
						slog.String("request_id", middleware.GetReqID(r.Context())))
				}
				httpx.RespondError(w, err)
				return
			}
			ctx := shared.ContextWithTenant(r.Context(), ident.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
