// Package middleware provides the HTTP middleware chain shared by all
// handlers: correlation, client metadata, request-scoped time, panic
// recovery, logging, and auth.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"kutumb/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns a correlation ID to every request. An inbound
// X-Request-ID header is trusted so IDs survive proxy hops; otherwise a new
// UUID is minted. The ID is echoed on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
