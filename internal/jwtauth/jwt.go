// Package jwtauth issues and validates the HS256 access tokens that carry an
// actor ID and role claim.
package jwtauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
)

// Claims represents the JWT claims for our access tokens.
type Claims struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewService(signingKey string, issuer string, audience string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Mint signs an access token for the given actor.
func (s *Service) Mint(actor domain.ActorID, role domain.Role, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ActorID: actor.String(),
		Role:    string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify parses and validates a token, returning the actor it identifies.
func (s *Service) Verify(tokenString string) (domain.ActorID, domain.Role, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.ActorID{}, "", dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return domain.ActorID{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.ActorID{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	actor, err := domain.ParseActorID(claims.ActorID)
	if err != nil {
		return domain.ActorID{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid actor claim")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.ActorID{}, "", dErrors.New(dErrors.CodeUnauthorized, "invalid role claim")
	}

	return actor, role, nil
}
