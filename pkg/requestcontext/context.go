// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services consume them. Keeping the package free
// of net/http lets services import only what they need. Every lifecycle
// transition authorizes against the actor and role carried here; there is no
// ambient session state.
//
// Usage in services (read values):
//
//	actor := requestcontext.Actor(ctx)
//	role := requestcontext.Role(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithActor(ctx, actorID, domain.RoleOfficer)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"kutumb/pkg/domain"
)

type (
	actorIDKey     struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	deviceNameKey  struct{}
)

// Actor retrieves the authenticated actor ID from the context.
// Returns the zero value (nil UUID) if not set.
func Actor(ctx context.Context) domain.ActorID {
	if actor, ok := ctx.Value(actorIDKey{}).(domain.ActorID); ok {
		return actor
	}
	return domain.ActorID{}
}

// Role retrieves the authenticated actor's role claim from the context.
func Role(ctx context.Context) domain.Role {
	if role, ok := ctx.Value(roleKey{}).(domain.Role); ok {
		return role
	}
	return ""
}

// WithActor injects an actor ID and role claim into the context.
func WithActor(ctx context.Context, actor domain.ActorID, role domain.Role) context.Context {
	ctx = context.WithValue(ctx, actorIDKey{}, actor)
	return context.WithValue(ctx, roleKey{}, role)
}

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context. Falls back to time.Now()
// for non-HTTP contexts (workers, tests that don't pin time).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context so all operations within one
// request observe the same "now".
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the raw User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// DeviceName retrieves the parsed device description (browser + OS) from the
// context. Recorded in audit details for check-in events.
func DeviceName(ctx context.Context) string {
	if d, ok := ctx.Value(deviceNameKey{}).(string); ok {
		return d
	}
	return ""
}

// WithClientMetadata injects client IP, User-Agent, and parsed device name.
// Useful for service unit tests that don't run the full middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent, deviceName string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	return context.WithValue(ctx, deviceNameKey{}, deviceName)
}
