package testutil

import (
	"net/http"
	"time"

	"kutumb/pkg/domain"
	"kutumb/pkg/requestcontext"
)

// WithActor attaches an authenticated actor to the request context. This
// simulates what the auth middleware would do for authenticated requests.
// An invalid actor ID is silently ignored.
func WithActor(req *http.Request, actorID string, role domain.Role) *http.Request {
	parsed, err := domain.ParseActorID(actorID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActor(req.Context(), parsed, role))
}

// WithRequestID attaches a request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithTime pins the request clock so handler tests produce deterministic
// timestamps.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
