package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/99minutos/credential-service/internal/core/domain"
)

const (
	userKeyPrefix  = "credentials:user:"
	emailKeyPrefix = "credentials:email:"
)

// insertScript writes the user hash and its email index only when neither
// key exists. Email is checked first.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then return 'email' end
if redis.call('EXISTS', KEYS[1]) == 1 then return 'username' end
redis.call('HSET', KEYS[1], 'email', ARGV[2], 'role', ARGV[3], 'salt', ARGV[4], 'password_hash', ARGV[5], 'created_at', ARGV[6])
redis.call('SET', KEYS[2], ARGV[1])
return 'ok'
`)

// putScript overwrites the user hash and repoints the email index. The old
// email index is dropped if it still points at this username.
var putScript = redis.NewScript(`
local old = redis.call('HGET', KEYS[1], 'email')
if old and old ~= ARGV[2] then
  local oldKey = ARGV[7] .. old
  if redis.call('GET', oldKey) == ARGV[1] then redis.call('DEL', oldKey) end
end
redis.call('HSET', KEYS[1], 'email', ARGV[2], 'role', ARGV[3], 'salt', ARGV[4], 'password_hash', ARGV[5], 'created_at', ARGV[6])
redis.call('SET', KEYS[2], ARGV[1])
return 'ok'
`)

// CredentialStore keeps each record in a hash at credentials:user:<username>
// with a string index credentials:email:<email> -> username.
type CredentialStore struct {
	client *redis.Client
}

func NewCredentialStore(client *redis.Client) *CredentialStore {
	return &CredentialStore{client: client}
}

func (s *CredentialStore) Insert(ctx context.Context, rec *domain.UserRecord) error {
	res, err := insertScript.Run(ctx, s.client, keys(rec), args(rec)...).Text()
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	switch res {
	case "email":
		return domain.ErrEmailTaken
	case "username":
		return domain.ErrUsernameTaken
	}
	return nil
}

func (s *CredentialStore) Put(ctx context.Context, rec *domain.UserRecord) error {
	a := append(args(rec), emailKeyPrefix)
	if err := putScript.Run(ctx, s.client, keys(rec), a...).Err(); err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Get(ctx context.Context, username string) (*domain.UserRecord, error) {
	fields, err := s.client.HGetAll(ctx, userKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return fromHash(username, fields), nil
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	username, err := s.client.Get(ctx, emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential by email: %w", err)
	}

	rec, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if rec.Email != email {
		return nil, domain.ErrUserNotFound
	}
	return rec, nil
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func userKey(username string) string { return userKeyPrefix + username }

func emailKey(email string) string { return emailKeyPrefix + email }

func keys(rec *domain.UserRecord) []string {
	return []string{userKey(rec.Username), emailKey(rec.Email)}
}

func args(rec *domain.UserRecord) []any {
	return []any{
		rec.Username,
		rec.Email,
		string(rec.Role),
		rec.Salt,
		rec.PasswordHash,
		strconv.FormatInt(rec.CreatedAt.Unix(), 10),
	}
}

func fromHash(username string, fields map[string]string) *domain.UserRecord {
	rec := &domain.UserRecord{
		Username:     username,
		Email:        fields["email"],
		Role:         domain.Role(fields["role"]),
		Salt:         fields["salt"],
		PasswordHash: fields["password_hash"],
	}
	if ts, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil && ts > 0 {
		rec.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return rec
}
