package middleware

import (
	"net/http"
	"time"

	"kutumb/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request so every
// timestamp written during one request observes the same "now".
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
