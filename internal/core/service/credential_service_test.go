package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/credential-service/internal/core/domain"
	"github.com/99minutos/credential-service/internal/core/ports"
	"github.com/99minutos/credential-service/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// stubStore wraps the memory store and lets tests inject failures.
type stubStore struct {
	*memory.CredentialStore
	getErr    error
	insertErr error
	putErr    error
	inserts   atomic.Int64
	puts      atomic.Int64
}

func newStubStore() *stubStore {
	return &stubStore{CredentialStore: memory.NewCredentialStore()}
}

func (s *stubStore) Get(ctx context.Context, username string) (*domain.UserRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.CredentialStore.Get(ctx, username)
}

func (s *stubStore) Insert(ctx context.Context, rec *domain.UserRecord) error {
	s.inserts.Add(1)
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.CredentialStore.Insert(ctx, rec)
}

func (s *stubStore) Put(ctx context.Context, rec *domain.UserRecord) error {
	s.puts.Add(1)
	if s.putErr != nil {
		return s.putErr
	}
	return s.CredentialStore.Put(ctx, rec)
}

type stubRecorder struct {
	mu            sync.Mutex
	registrations map[string]int
	logins        map[string]int
	hashes        int
}

func newStubRecorder() *stubRecorder {
	return &stubRecorder{registrations: map[string]int{}, logins: map[string]int{}}
}

func (r *stubRecorder) RegistrationOutcome(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registrations[o]++
}

func (r *stubRecorder) LoginOutcome(o string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins[o]++
}

func (r *stubRecorder) ObservePasswordHash(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hashes++
}

func newSvc(store ports.CredentialStore, policy domain.ConflictPolicy, rec Recorder) *CredentialService {
	return NewCredentialService(store, NewBcryptHasher(bcrypt.MinCost), policy, rec, zerolog.Nop())
}

func input(username, email, password string) ports.RegisterInput {
	return ports.RegisterInput{Username: username, Email: email, Role: domain.RoleUser, Password: password}
}

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestCredentialService_Register_Success(t *testing.T) {
	store := newStubStore()
	rec := newStubRecorder()
	svc := newSvc(store, domain.ConflictReject, rec)

	res, err := svc.Register(context.Background(), input("alice", "alice@example.com", "pass!word"))
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if res.Conflict != nil {
		t.Fatalf("unexpected conflict: %v", res.Conflict)
	}

	stored, err := store.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if stored.PasswordHash == "pass!word" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pass!word")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if len(stored.Salt) != 22 || stored.Salt != SaltOf(stored.PasswordHash) {
		t.Fatalf("expected bcrypt salt, got %q", stored.Salt)
	}
	if stored.Role != domain.RoleUser || stored.Email != "alice@example.com" {
		t.Fatalf("unexpected record: %+v", stored)
	}
	if stored.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
	if rec.registrations[OutcomeCreated] != 1 || rec.hashes != 1 {
		t.Fatalf("unexpected metrics: %+v hashes=%d", rec.registrations, rec.hashes)
	}
}

func TestCredentialService_Register_SaltIsPerUser(t *testing.T) {
	store := newStubStore()
	svc := newSvc(store, domain.ConflictReject, nil)

	_, _ = svc.Register(context.Background(), input("alice", "alice@example.com", "same!pass"))
	_, _ = svc.Register(context.Background(), input("bob", "bob@example.com", "same!pass"))

	a, _ := store.Get(context.Background(), "alice")
	b, _ := store.Get(context.Background(), "bob")
	if a.Salt == b.Salt || a.PasswordHash == b.PasswordHash {
		t.Fatalf("expected distinct salts and hashes for identical passwords")
	}
}

func TestCredentialService_Register_DuplicateUsername_Reject(t *testing.T) {
	store := newStubStore()
	rec := newStubRecorder()
	svc := newSvc(store, domain.ConflictReject, rec)

	if _, err := svc.Register(context.Background(), input("bob", "bob@example.com", "first!")); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	original, _ := store.Get(context.Background(), "bob")

	_, err := svc.Register(context.Background(), input("bob", "other@example.com", "second!"))
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}

	after, _ := store.Get(context.Background(), "bob")
	if *after != *original {
		t.Fatalf("record was modified: before %+v after %+v", original, after)
	}
	if store.inserts.Load() != 1 {
		t.Fatalf("expected a single insert, got %d", store.inserts.Load())
	}
	if rec.registrations[OutcomeConflict] != 1 {
		t.Fatalf("expected conflict outcome, got %+v", rec.registrations)
	}
}

func TestCredentialService_Register_DuplicateEmail_Reject(t *testing.T) {
	store := newStubStore()
	svc := newSvc(store, domain.ConflictReject, nil)

	_, _ = svc.Register(context.Background(), input("carol", "shared@example.com", "first!"))
	_, err := svc.Register(context.Background(), input("dave", "shared@example.com", "second!"))
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := store.Get(context.Background(), "dave"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("dave should not be stored, got %v", err)
	}
}

func TestCredentialService_Register_EmailCheckedBeforeUsername(t *testing.T) {
	store := newStubStore()
	svc := newSvc(store, domain.ConflictReject, nil)

	_, _ = svc.Register(context.Background(), input("erin", "erin@example.com", "first!"))
	_, err := svc.Register(context.Background(), input("erin", "erin@example.com", "first!"))
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken when both collide, got %v", err)
	}
}

func TestCredentialService_Register_InsertRaceReportsConflict(t *testing.T) {
	store := newStubStore()
	store.insertErr = domain.ErrUsernameTaken
	rec := newStubRecorder()
	svc := newSvc(store, domain.ConflictReject, rec)

	_, err := svc.Register(context.Background(), input("frank", "frank@example.com", "pass!1"))
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken from Insert, got %v", err)
	}
	if rec.registrations[OutcomeConflict] != 1 {
		t.Fatalf("expected conflict outcome, got %+v", rec.registrations)
	}
}

func TestCredentialService_Register_ConcurrentSameUsername(t *testing.T) {
	store := newStubStore()
	svc := newSvc(store, domain.ConflictReject, nil)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := string(rune('a'+i)) + "@example.com"
			if _, err := svc.Register(context.Background(), input("racer", email, "pass!1")); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !domain.IsConflict(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful registration, got %d", successes)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored record, got %d", store.Len())
	}
}

func TestCredentialService_Register_LegacyInsertRaceOverwrites(t *testing.T) {
	store := newStubStore()
	store.insertErr = domain.ErrUsernameTaken
	rec := newStubRecorder()
	svc := newSvc(store, domain.ConflictLegacy, rec)

	res, err := svc.Register(context.Background(), input("frank", "frank@example.com", "pass!1"))
	if err != nil {
		t.Fatalf("legacy register returned error: %v", err)
	}
	if !errors.Is(res.Conflict, domain.ErrUsernameTaken) {
		t.Fatalf("expected username conflict to be reported, got %v", res.Conflict)
	}
	if store.puts.Load() != 1 {
		t.Fatalf("expected fallback to Put, got %d puts", store.puts.Load())
	}
	if _, err := store.Get(context.Background(), "frank"); err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.registrations[OutcomeLegacyOverwrite] != 1 {
		t.Fatalf("expected legacy_overwrite outcome, got %+v", rec.registrations)
	}
}

func TestCredentialService_Register_ConcurrentSameUsernameLegacy(t *testing.T) {
	store := newStubStore()
	svc := newSvc(store, domain.ConflictLegacy, nil)

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		clean     int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("racer%d@example.com", i)
			res, err := svc.Register(context.Background(), input("racer", email, "pass!1"))
			if err != nil {
				t.Errorf("legacy policy must not fail a duplicate: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Conflict == nil {
				clean++
			} else {
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	if clean != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 clean and %d conflicting registrations, got %d and %d", n-1, clean, conflicts)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one stored record, got %d", store.Len())
	}
}

func TestCredentialService_Register_LegacyOverwrite(t *testing.T) {
	store := newStubStore()
	rec := newStubRecorder()
	svc := newSvc(store, domain.ConflictLegacy, rec)

	if _, err := svc.Register(context.Background(), input("gina", "gina@example.com", "old!pass")); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	res, err := svc.Register(context.Background(), input("gina", "gina2@example.com", "new!pass"))
	if err != nil {
		t.Fatalf("legacy register returned error: %v", err)
	}
	if !errors.Is(res.Conflict, domain.ErrUsernameTaken) {
		t.Fatalf("expected username conflict to be reported, got %v", res.Conflict)
	}
	if store.puts.Load() != 1 {
		t.Fatalf("expected overwrite via Put, got %d puts", store.puts.Load())
	}

	if _, err := svc.Login(context.Background(), "gina", "new!pass"); err != nil {
		t.Fatalf("overwritten password should log in: %v", err)
	}
	if _, err := svc.Login(context.Background(), "gina", "old!pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work, got %v", err)
	}
	if rec.registrations[OutcomeLegacyOverwrite] != 1 {
		t.Fatalf("expected legacy_overwrite outcome, got %+v", rec.registrations)
	}
}

func TestCredentialService_Register_LegacyDuplicateEmail(t *testing.T) {
	store := newStubStore()
	svc := newSvc(store, domain.ConflictLegacy, nil)

	_, _ = svc.Register(context.Background(), input("hank", "shared@example.com", "pass!1"))
	res, err := svc.Register(context.Background(), input("ivan", "shared@example.com", "pass!2"))
	if err != nil {
		t.Fatalf("legacy register returned error: %v", err)
	}
	if !errors.Is(res.Conflict, domain.ErrEmailTaken) {
		t.Fatalf("expected email conflict, got %v", res.Conflict)
	}
	if store.Len() != 2 {
		t.Fatalf("legacy policy should store the duplicate, got %d records", store.Len())
	}
}

func TestCredentialService_Register_InvalidRole(t *testing.T) {
	svc := newSvc(newStubStore(), domain.ConflictReject, nil)

	in := input("jane", "jane@example.com", "pass!1")
	in.Role = "client"
	_, err := svc.Register(context.Background(), in)

	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "type" {
		t.Fatalf("expected type ValidationError, got %v", err)
	}
}

func TestCredentialService_Register_StoreError(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("store unavailable")
	rec := newStubRecorder()
	svc := newSvc(store, domain.ConflictReject, rec)

	_, err := svc.Register(context.Background(), input("kate", "kate@example.com", "pass!1"))
	if err == nil || domain.IsConflict(err) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if rec.registrations[OutcomeError] != 1 {
		t.Fatalf("expected error outcome, got %+v", rec.registrations)
	}
}

func TestCredentialService_Register_PasswordTooLongForBcrypt(t *testing.T) {
	svc := newSvc(newStubStore(), domain.ConflictReject, nil)

	// 24 runes, 96 bytes.
	long := "𝔭𝔞𝔰𝔰𝔴𝔬𝔯𝔡𝔭𝔞𝔰𝔰𝔴𝔬𝔯𝔡𝔭𝔞𝔰𝔰𝔴𝔬𝔯𝔡"
	_, err := svc.Register(context.Background(), input("lena", "lena@example.com", long))

	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "password" {
		t.Fatalf("expected password ValidationError, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestCredentialService_Login_Success(t *testing.T) {
	rec := newStubRecorder()
	svc := newSvc(newStubStore(), domain.ConflictReject, rec)

	if _, err := svc.Register(context.Background(), input("mike", "mike@example.com", "s3cret!")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	user, err := svc.Login(context.Background(), "mike", "s3cret!")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user == nil || user.Username != "mike" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if rec.logins[OutcomeSuccess] != 1 {
		t.Fatalf("expected success outcome, got %+v", rec.logins)
	}
}

func TestCredentialService_Login_FailuresAreIndistinguishable(t *testing.T) {
	rec := newStubRecorder()
	svc := newSvc(newStubStore(), domain.ConflictReject, rec)
	_, _ = svc.Register(context.Background(), input("nina", "nina@example.com", "good!pass"))

	_, wrongPassword := svc.Login(context.Background(), "nina", "bad!pass")
	_, unknownUser := svc.Login(context.Background(), "ghost", "bad!pass")
	_, emptyUser := svc.Login(context.Background(), "", "")

	for name, err := range map[string]error{"wrong password": wrongPassword, "unknown user": unknownUser, "empty": emptyUser} {
		if err != domain.ErrInvalidCredentials {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", name, err)
		}
	}
	if rec.logins[OutcomeFailure] != 3 {
		t.Fatalf("expected three failures, got %+v", rec.logins)
	}
}

type countingHasher struct {
	*BcryptHasher
	hashes atomic.Int64
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashes.Add(1)
	return h.BcryptHasher.Hash(password)
}

func TestCredentialService_UnknownUserHashPreparedUpFront(t *testing.T) {
	hasher := &countingHasher{BcryptHasher: NewBcryptHasher(bcrypt.MinCost)}
	svc := NewCredentialService(newStubStore(), hasher, domain.ConflictReject, nil, zerolog.Nop())

	if got := hasher.hashes.Load(); got != 1 {
		t.Fatalf("expected the unknown-user hash at construction, got %d hashes", got)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(context.Background(), "ghost", "pass!1"); err != domain.ErrInvalidCredentials {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	}
	if got := hasher.hashes.Load(); got != 1 {
		t.Fatalf("unknown-user logins must not hash again, got %d hashes", got)
	}
}

func TestCredentialService_Login_StoreError(t *testing.T) {
	store := newStubStore()
	store.getErr = errors.New("store unavailable")
	svc := newSvc(store, domain.ConflictReject, nil)

	_, err := svc.Login(context.Background(), "olga", "pass!1")
	if err == nil || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected store error to surface, got %v", err)
	}
}

func TestCredentialService_Login_CorruptHash(t *testing.T) {
	store := newStubStore()
	_ = store.Put(context.Background(), &domain.UserRecord{Username: "pete", Email: "pete@example.com", PasswordHash: "not-a-hash"})
	svc := newSvc(store, domain.ConflictReject, nil)

	_, err := svc.Login(context.Background(), "pete", "pass!1")
	if err == nil || errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected verification error, got %v", err)
	}
}

func TestCredentialService_RoundTrip(t *testing.T) {
	svc := newSvc(newStubStore(), domain.ConflictReject, nil)

	cases := []ports.RegisterInput{
		{Username: "abc", Email: "abc@example.com", Role: domain.RoleUser, Password: "abcd!"},
		{Username: "exactly_twenty_four_chrs", Email: "long@example.com", Role: domain.RoleAdmin, Password: "aaaaaaaaaaaaaaaaaaaaaaa!"},
		{Username: "unicode", Email: "u@example.com", Role: domain.RoleUser, Password: "pässwörd"},
		{Username: "spaces", Email: "s@example.com", Role: domain.RoleAdmin, Password: "  pass  "},
	}

	for _, in := range cases {
		if _, err := svc.Register(context.Background(), in); err != nil {
			t.Fatalf("register %s: %v", in.Username, err)
		}
		if _, err := svc.Login(context.Background(), in.Username, in.Password); err != nil {
			t.Fatalf("login %s: %v", in.Username, err)
		}
		for _, modified := range []string{in.Password + "x", in.Password[1:], "", "X" + in.Password} {
			if _, err := svc.Login(context.Background(), in.Username, modified); !errors.Is(err, domain.ErrInvalidCredentials) {
				t.Fatalf("login %s with %q: expected ErrInvalidCredentials, got %v", in.Username, modified, err)
			}
		}
	}
}
