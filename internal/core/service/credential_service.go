package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/credential-service/internal/core/domain"
	"github.com/99minutos/credential-service/internal/core/ports"
)

// Outcome labels reported to a Recorder.
const (
	OutcomeCreated         = "created"
	OutcomeConflict        = "conflict"
	OutcomeLegacyOverwrite = "legacy_overwrite"
	OutcomeInvalid         = "invalid"
	OutcomeError           = "error"
	OutcomeSuccess         = "success"
	OutcomeFailure         = "failure"
)

// Recorder abstracts the metrics sink (Prometheus).
type Recorder interface {
	RegistrationOutcome(outcome string)
	LoginOutcome(outcome string)
	ObservePasswordHash(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RegistrationOutcome(string)         {}
func (nopRecorder) LoginOutcome(string)                {}
func (nopRecorder) ObservePasswordHash(time.Duration) {}

// dummyPassword is hashed once at construction and used to verify logins for
// unknown usernames, so that path costs the same bcrypt work as a wrong
// password.
const dummyPassword = "credential-service/unknown-user"

// CredentialService implements registration and login.
type CredentialService struct {
	store    ports.CredentialStore
	lookup   ports.Lookup
	hasher   ports.PasswordHasher
	policy   domain.ConflictPolicy
	recorder Recorder
	log      zerolog.Logger
	now      func() time.Time

	dummyHash string
}

func NewCredentialService(
	store ports.CredentialStore,
	hasher ports.PasswordHasher,
	policy domain.ConflictPolicy,
	recorder Recorder,
	log zerolog.Logger,
) *CredentialService {
	if policy != domain.ConflictLegacy {
		policy = domain.ConflictReject
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	s := &CredentialService{
		store:    store,
		lookup:   NewLookupService(store),
		hasher:   hasher,
		policy:   policy,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
	s.dummyHash = s.unknownUserHash()
	return s
}

// Register stores a new user record.
//
// Under ConflictReject a duplicate email or username returns
// domain.ErrEmailTaken / domain.ErrUsernameTaken and nothing is stored; the
// final write goes through CredentialStore.Insert so two concurrent
// registrations cannot both pass the uniqueness check.
//
// Under ConflictLegacy the duplicate is returned in RegisterResult.Conflict
// and the record is written with Put regardless, overwriting any record
// under the same username. That includes a conflict first seen by Insert.
func (s *CredentialService) Register(ctx context.Context, in ports.RegisterInput) (*ports.RegisterResult, error) {
	if !in.Role.Valid() {
		s.recorder.RegistrationOutcome(OutcomeInvalid)
		return nil, domain.NewValidationError("type", `type must be one of [user, admin]`)
	}

	conflict, err := s.checkUnique(ctx, in.Username, in.Email)
	if err != nil {
		s.recorder.RegistrationOutcome(OutcomeError)
		return nil, fmt.Errorf("register: %w", err)
	}
	if conflict != nil && s.policy == domain.ConflictReject {
		s.recorder.RegistrationOutcome(OutcomeConflict)
		return nil, conflict
	}

	rec, err := s.newRecord(in)
	if err != nil {
		s.recordHashFailure(err)
		return nil, err
	}

	if conflict != nil {
		return s.overwrite(ctx, rec, conflict)
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		if domain.IsConflict(err) {
			// Lost a race with a concurrent registration after checkUnique.
			if s.policy == domain.ConflictLegacy {
				return s.overwrite(ctx, rec, err)
			}
			s.recorder.RegistrationOutcome(OutcomeConflict)
			return nil, err
		}
		s.recorder.RegistrationOutcome(OutcomeError)
		return nil, fmt.Errorf("register: insert: %w", err)
	}

	s.log.Info().Str("username", rec.Username).Str("role", string(rec.Role)).Msg("user registered")
	s.recorder.RegistrationOutcome(OutcomeCreated)
	return &ports.RegisterResult{User: rec.Clone()}, nil
}

// Login verifies a username/password pair. Unknown usernames and wrong
// passwords both yield domain.ErrInvalidCredentials.
func (s *CredentialService) Login(ctx context.Context, username, password string) (*domain.UserRecord, error) {
	rec, err := s.lookup.FindByUsername(ctx, username)
	if err != nil {
		s.recorder.LoginOutcome(OutcomeError)
		return nil, fmt.Errorf("login: %w", err)
	}

	hash := s.dummyHash
	if rec != nil {
		hash = rec.PasswordHash
	}

	ok, verifyErr := s.hasher.Verify(password, hash)
	if verifyErr != nil && rec != nil {
		s.recorder.LoginOutcome(OutcomeError)
		return nil, fmt.Errorf("login: %w", verifyErr)
	}
	if rec == nil || !ok {
		s.recorder.LoginOutcome(OutcomeFailure)
		return nil, domain.ErrInvalidCredentials
	}

	s.recorder.LoginOutcome(OutcomeSuccess)
	return rec, nil
}

// overwrite stores rec with Put despite conflict. Legacy policy only.
func (s *CredentialService) overwrite(ctx context.Context, rec *domain.UserRecord, conflict error) (*ports.RegisterResult, error) {
	if err := s.store.Put(ctx, rec); err != nil {
		s.recorder.RegistrationOutcome(OutcomeError)
		return nil, fmt.Errorf("register: overwrite: %w", err)
	}
	s.log.Warn().
		Str("username", rec.Username).
		Str("conflict", conflict.Error()).
		Msg("legacy conflict policy: duplicate stored")
	s.recorder.RegistrationOutcome(OutcomeLegacyOverwrite)
	return &ports.RegisterResult{User: rec.Clone(), Conflict: conflict}, nil
}

// checkUnique looks up the email first, then the username, and returns the
// first conflict found.
func (s *CredentialService) checkUnique(ctx context.Context, username, email string) (conflict, err error) {
	byEmail, err := s.lookup.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if byEmail != nil {
		return domain.ErrEmailTaken, nil
	}

	byName, err := s.lookup.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if byName != nil {
		return domain.ErrUsernameTaken, nil
	}
	return nil, nil
}

func (s *CredentialService) newRecord(in ports.RegisterInput) (*domain.UserRecord, error) {
	start := time.Now()
	hash, err := s.hasher.Hash(in.Password)
	s.recorder.ObservePasswordHash(time.Since(start))
	if err != nil {
		return nil, err
	}

	return &domain.UserRecord{
		Username:     in.Username,
		Email:        in.Email,
		Role:         in.Role,
		Salt:         SaltOf(hash),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}, nil
}

func (s *CredentialService) recordHashFailure(err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		s.recorder.RegistrationOutcome(OutcomeInvalid)
		return
	}
	s.recorder.RegistrationOutcome(OutcomeError)
}

func (s *CredentialService) unknownUserHash() string {
	hash, err := s.hasher.Hash(dummyPassword)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to prepare unknown-user hash")
		return ""
	}
	return hash
}
