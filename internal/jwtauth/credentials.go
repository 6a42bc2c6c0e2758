package jwtauth

import (
	"golang.org/x/crypto/bcrypt"

	"kutumb/pkg/domain"
	dErrors "kutumb/pkg/domain-errors"
)

// Credential binds a login name to a bcrypt password hash and the actor it
// authenticates as.
type Credential struct {
	Username     string
	PasswordHash []byte
	Actor        domain.ActorID
	Role         domain.Role
}

// CredentialStore authenticates username/password pairs against an in-memory
// credential set. Production deployments back this with the staff directory;
// dev and test environments seed it directly.
type CredentialStore struct {
	byUsername map[string]Credential
}

func NewCredentialStore(creds ...Credential) *CredentialStore {
	byUsername := make(map[string]Credential, len(creds))
	for _, c := range creds {
		byUsername[c.Username] = c
	}
	return &CredentialStore{byUsername: byUsername}
}

// HashPassword produces a bcrypt hash for seeding credentials.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Authenticate verifies the password and returns the matched credential.
// Failures are deliberately indistinguishable between unknown user and wrong
// password.
func (s *CredentialStore) Authenticate(username, password string) (Credential, error) {
	cred, ok := s.byUsername[username]
	if !ok {
		// Burn a comparison so unknown users cost the same as wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$invalidsaltinvalidsaltinvalidsaltinvalidsalt"), []byte(password))
		return Credential{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return Credential{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	return cred, nil
}
