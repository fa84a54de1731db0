package ports

import (
	"context"

	"github.com/99minutos/credential-service/internal/core/domain"
)

// CredentialStore holds user records keyed by username.
type CredentialStore interface {
	// Put inserts or overwrites the record under its username. It does not
	// enforce uniqueness.
	Put(ctx context.Context, rec *domain.UserRecord) error
	// Get returns domain.ErrUserNotFound when no record exists.
	Get(ctx context.Context, username string) (*domain.UserRecord, error)
	// FindByEmail returns domain.ErrUserNotFound when no record matches.
	FindByEmail(ctx context.Context, email string) (*domain.UserRecord, error)
	// Insert stores rec only if neither its username nor its email is in use.
	// The check and the write are atomic. On conflict it returns
	// domain.ErrEmailTaken or domain.ErrUsernameTaken, email checked first.
	Insert(ctx context.Context, rec *domain.UserRecord) error
	Ping(ctx context.Context) error
}

// Lookup is the read-only query surface over a CredentialStore.
// Both methods return (nil, nil) when nothing matches.
type Lookup interface {
	FindByUsername(ctx context.Context, username string) (*domain.UserRecord, error)
	FindByEmail(ctx context.Context, email string) (*domain.UserRecord, error)
}
