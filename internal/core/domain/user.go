package domain

import (
	"errors"
	"time"
)

// Role is the label a user registers with. It is stored but never enforced.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the accepted role labels.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("username or password is incorrect")
)

// UserRecord is the stored credential entry, keyed by Username.
// It never holds a plaintext password.
type UserRecord struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	Salt         string    `json:"-"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Clone returns a copy so callers cannot mutate a stored record.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// IsConflict reports whether err is a username or email uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken)
}

// ConflictMessage is the client-facing text for a uniqueness violation.
func ConflictMessage(err error) string {
	if errors.Is(err, ErrEmailTaken) {
		return "The email already exists"
	}
	return "The username already exists"
}

// ConflictPolicy decides what registration does when the username or email
// is already in use.
type ConflictPolicy string

const (
	// ConflictReject refuses the registration and stores nothing.
	ConflictReject ConflictPolicy = "reject"
	// ConflictLegacy reports the conflict with a success status and stores
	// the record anyway, overwriting any entry under the same username.
	// Kept only for clients that depend on the old behaviour.
	ConflictLegacy ConflictPolicy = "legacy"
)
