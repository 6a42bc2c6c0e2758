package jwtauth

import (
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/testutil"
)

func TestMintAndVerify(t *testing.T) {
	svc := NewService("test-key", "kutumb", "kutumb-api")
	actor := domain.NewActorID()

	token, err := svc.Mint(actor, domain.RoleOfficer, time.Minute)
	require.NoError(t, err)

	gotActor, gotRole, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, actor, gotActor)
	assert.Equal(t, domain.RoleOfficer, gotRole)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-key", "kutumb", "kutumb-api")

	token, err := svc.Mint(domain.NewActorID(), domain.RoleOfficer, -time.Minute)
	require.NoError(t, err)

	_, _, err = svc.Verify(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	minter := NewService("key-one", "kutumb", "kutumb-api")
	verifier := NewService("key-two", "kutumb", "kutumb-api")

	token, err := minter.Mint(domain.NewActorID(), domain.RoleStaff, time.Minute)
	require.NoError(t, err)

	_, _, err = verifier.Verify(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewService("test-key", "kutumb", "kutumb-api")
	_, _, err := svc.Verify("not.a.token")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestCredentialStore(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	actor := domain.NewActorID()
	store := NewCredentialStore(Credential{
		Username:     "officer1",
		PasswordHash: hash,
		Actor:        actor,
		Role:         domain.RoleOfficer,
	})

	t.Run("valid credentials authenticate", func(t *testing.T) {
		cred, err := store.Authenticate("officer1", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, actor, cred.Actor)
		assert.Equal(t, domain.RoleOfficer, cred.Role)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		_, err := store.Authenticate("officer1", "wrong")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("unknown user is rejected with the same error", func(t *testing.T) {
		_, err := store.Authenticate("nobody", "s3cret")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestIssueTokenEndpoint(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	tokens := NewService("test-key", "kutumb", "kutumb-api")
	creds := NewCredentialStore(Credential{
		Username:     "supervisor1",
		PasswordHash: hash,
		Actor:        domain.NewActorID(),
		Role:         domain.RoleSupervisor,
	})
	handler := NewHandler(tokens, creds, slog.New(slog.DiscardHandler))

	t.Run("issues a verifiable token", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/token", tokenRequest{
			Username: "supervisor1",
			Password: "s3cret",
		})
		rr := testutil.DoRequest(http.HandlerFunc(handler.issueToken), req)

		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[tokenResponse](t, rr)
		assert.Equal(t, "Bearer", resp.TokenType)

		_, role, err := tokens.Verify(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleSupervisor, role)
	})

	t.Run("rejects bad credentials", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/token", tokenRequest{
			Username: "supervisor1",
			Password: "wrong",
		})
		rr := testutil.DoRequest(http.HandlerFunc(handler.issueToken), req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/token", tokenRequest{Username: "supervisor1"})
		rr := testutil.DoRequest(http.HandlerFunc(handler.issueToken), req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation")
	})
}
