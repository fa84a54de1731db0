package ports

import (
	"context"

	"github.com/99minutos/credential-service/internal/core/domain"
)

// RegisterInput is an already validated registration request.
type RegisterInput struct {
	Username string
	Email    string
	Role     domain.Role
	Password string
}

// RegisterResult describes a completed registration. Conflict is only set
// under the legacy conflict policy, where a duplicate is reported but the
// record is stored anyway.
type RegisterResult struct {
	User     *domain.UserRecord
	Conflict error
}

type CredentialService interface {
	Register(ctx context.Context, in RegisterInput) (*RegisterResult, error)
	Login(ctx context.Context, username, password string) (*domain.UserRecord, error)
}

// PasswordHasher derives and verifies salted password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify returns (false, nil) on mismatch and an error only when the
	// stored hash is unusable.
	Verify(password, hash string) (bool, error)
}
