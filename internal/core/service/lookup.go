package service

import (
	"context"
	"errors"

	"github.com/99minutos/credential-service/internal/core/domain"
	"github.com/99minutos/credential-service/internal/core/ports"
)

// LookupService answers read-only queries over a CredentialStore. Misses
// are reported as (nil, nil) so callers can treat "absent" as a value.
type LookupService struct {
	store ports.CredentialStore
}

func NewLookupService(store ports.CredentialStore) *LookupService {
	return &LookupService{store: store}
}

func (l *LookupService) FindByUsername(ctx context.Context, username string) (*domain.UserRecord, error) {
	if username == "" {
		return nil, nil
	}
	return absentOnMiss(l.store.Get(ctx, username))
}

// FindByEmail may scan every stored record, depending on the backend.
func (l *LookupService) FindByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	if email == "" {
		return nil, nil
	}
	return absentOnMiss(l.store.FindByEmail(ctx, email))
}

func absentOnMiss(rec *domain.UserRecord, err error) (*domain.UserRecord, error) {
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
