package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"kutumb/pkg/domain"
	domainerrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/platform/httputil"
	"kutumb/pkg/requestcontext"
)

// TokenVerifier validates a bearer token and returns the actor it identifies.
type TokenVerifier interface {
	Verify(tokenString string) (domain.ActorID, domain.Role, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// verified actor in the context.
func RequireAuth(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access, missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			actor, role, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access, invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor, role)))
		})
	}
}

// RequireRole allows only the listed roles past. Must run after RequireAuth.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[requestcontext.Role(r.Context())]; !ok {
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeForbidden, "role not permitted for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
