package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/credential-service/internal/core/domain"
)

const (
	credentialsCollection = "credentials"
	usernameIndex         = "uniq_username"
	emailIndex            = "uniq_email"
	emailLookupIndex      = "idx_email"
)

// CredentialStore persists user records in MongoDB. Uniqueness of username
// is enforced by a unique index, and so is email unless duplicates are
// allowed, so Insert is atomic on the server.
type CredentialStore struct {
	coll        *mongo.Collection
	uniqueEmail bool
}

// NewCredentialStore returns a store over the credentials collection. With
// uniqueEmail false the email index is a plain lookup index and Put may store
// two usernames with the same email (legacy conflict policy).
func NewCredentialStore(db *mongo.Database, uniqueEmail bool) *CredentialStore {
	return &CredentialStore{coll: db.Collection(credentialsCollection), uniqueEmail: uniqueEmail}
}

type credentialDoc struct {
	Username     string `bson:"username"`
	Email        string `bson:"email"`
	Role         string `bson:"role"`
	Salt         string `bson:"salt"`
	PasswordHash string `bson:"password_hash"`
	CreatedAt    int64  `bson:"created_at"`
}

// EnsureIndexes creates the username and email indexes. It is safe to call
// on every start.
func (s *CredentialStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.coll.Indexes().CreateMany(ctx, indexModels(s.uniqueEmail)); err != nil {
		return fmt.Errorf("create credential indexes: %w", err)
	}
	return nil
}

func indexModels(uniqueEmail bool) []mongo.IndexModel {
	email := options.Index().SetName(emailLookupIndex)
	if uniqueEmail {
		email = options.Index().SetName(emailIndex).SetUnique(true)
	}
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName(usernameIndex).SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: email},
	}
}

func (s *CredentialStore) Insert(ctx context.Context, rec *domain.UserRecord) error {
	if _, err := s.coll.InsertOne(ctx, toDoc(rec)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateKeyError(err)
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

// Put upserts by username. When the email index is unique, a record whose
// email belongs to another username is refused with domain.ErrEmailTaken.
func (s *CredentialStore) Put(ctx context.Context, rec *domain.UserRecord) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"username": rec.Username},
		toDoc(rec),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateKeyError(err)
		}
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Get(ctx context.Context, username string) (*domain.UserRecord, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *CredentialStore) FindByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

func (s *CredentialStore) findOne(ctx context.Context, filter bson.M) (*domain.UserRecord, error) {
	var doc credentialDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return fromDoc(doc), nil
}

// duplicateKeyError maps an E11000 error to the taken error of the index
// that rejected the write.
func duplicateKeyError(err error) error {
	if strings.Contains(err.Error(), emailIndex) {
		return domain.ErrEmailTaken
	}
	return domain.ErrUsernameTaken
}

func toDoc(rec *domain.UserRecord) credentialDoc {
	return credentialDoc{
		Username:     rec.Username,
		Email:        rec.Email,
		Role:         string(rec.Role),
		Salt:         rec.Salt,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt.Unix(),
	}
}

func fromDoc(doc credentialDoc) *domain.UserRecord {
	return &domain.UserRecord{
		Username:     doc.Username,
		Email:        doc.Email,
		Role:         domain.Role(doc.Role),
		Salt:         doc.Salt,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    unixToTime(doc.CreatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
