// Package memory provides the default process-local CredentialStore.
// Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/99minutos/credential-service/internal/core/domain"
)

// CredentialStore keeps records in a map keyed by username. Records are
// copied on the way in and out.
type CredentialStore struct {
	mu    sync.RWMutex
	users map[string]*domain.UserRecord
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{users: make(map[string]*domain.UserRecord)}
}

func (s *CredentialStore) Put(_ context.Context, rec *domain.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[rec.Username] = rec.Clone()
	return nil
}

func (s *CredentialStore) Get(_ context.Context, username string) (*domain.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return rec.Clone(), nil
}

// FindByEmail scans every record. Map iteration order is random, so if
// duplicates were ever stored (legacy policy) which one is returned is
// unspecified.
func (s *CredentialStore) FindByEmail(_ context.Context, email string) (*domain.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := s.findByEmailLocked(email); rec != nil {
		return rec.Clone(), nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *CredentialStore) Insert(_ context.Context, rec *domain.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findByEmailLocked(rec.Email) != nil {
		return domain.ErrEmailTaken
	}
	if _, ok := s.users[rec.Username]; ok {
		return domain.ErrUsernameTaken
	}
	s.users[rec.Username] = rec.Clone()
	return nil
}

func (s *CredentialStore) Ping(context.Context) error { return nil }

// Len returns the number of stored records.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *CredentialStore) findByEmailLocked(email string) *domain.UserRecord {
	for _, rec := range s.users {
		if rec.Email == email {
			return rec
		}
	}
	return nil
}
