package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kutumb/pkg/domain"
	"kutumb/pkg/requestcontext"
	"kutumb/pkg/testutil"
)

type stubVerifier struct {
	actor domain.ActorID
	role  domain.Role
	err   error
}

func (s stubVerifier) Verify(string) (domain.ActorID, domain.Role, error) {
	return s.actor, s.role, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRequireAuth(t *testing.T) {
	actor := domain.NewActorID()

	var gotActor domain.ActorID
	var gotRole domain.Role
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = requestcontext.Actor(r.Context())
		gotRole = requestcontext.Role(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing token is unauthorized", func(t *testing.T) {
		handler := RequireAuth(stubVerifier{}, discardLogger())(next)
		rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodPost, "/visits"))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("invalid token is unauthorized", func(t *testing.T) {
		handler := RequireAuth(stubVerifier{err: errors.New("expired")}, discardLogger())(next)
		req := testutil.NewRequest(t, http.MethodPost, "/visits")
		req.Header.Set("Authorization", "Bearer bad")
		rr := testutil.DoRequest(handler, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("valid token stores actor and role", func(t *testing.T) {
		handler := RequireAuth(stubVerifier{actor: actor, role: domain.RoleOfficer}, discardLogger())(next)
		req := testutil.NewRequest(t, http.MethodPost, "/visits")
		req.Header.Set("Authorization", "Bearer good")
		rr := testutil.DoRequest(handler, req)

		testutil.AssertStatusOK(t, rr)
		assert.Equal(t, actor, gotActor)
		assert.Equal(t, domain.RoleOfficer, gotRole)
	})
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRole(domain.RoleSupervisor)(next)

	t.Run("wrong role is forbidden", func(t *testing.T) {
		req := testutil.WithActor(testutil.NewRequest(t, http.MethodPost, "/visits/x/approve"), domain.NewActorID().String(), domain.RoleOfficer)
		rr := testutil.DoRequest(handler, req)
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
	})

	t.Run("allowed role passes", func(t *testing.T) {
		req := testutil.WithActor(testutil.NewRequest(t, http.MethodPost, "/visits/x/approve"), domain.NewActorID().String(), domain.RoleSupervisor)
		rr := testutil.DoRequest(handler, req)
		testutil.AssertStatusOK(t, rr)
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := RequestID(next)

	t.Run("mints an ID when absent", func(t *testing.T) {
		rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rr.Header().Get("X-Request-ID"))
	})

	t.Run("propagates an inbound ID", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/healthz")
		req.Header.Set("X-Request-ID", "corr-123")
		rr := testutil.DoRequest(handler, req)
		assert.Equal(t, "corr-123", seen)
		assert.Equal(t, "corr-123", rr.Header().Get("X-Request-ID"))
	})
}

func TestClientMetadata(t *testing.T) {
	var ip, device string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		device = requestcontext.DeviceName(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := ClientMetadata(next)

	req := httptest.NewRequest(http.MethodGet, "/visits", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	testutil.DoRequest(handler, req)

	assert.Equal(t, "203.0.113.9", ip)
	assert.Contains(t, device, "Chrome")
	assert.Contains(t, device, "Windows")
}

func TestRecoveryConvertsPanic(t *testing.T) {
	handler := Recovery(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/visits"))
	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal")
}
