package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/pkg/commitment"
)

const usersCollection = "users"

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

type mongoUser struct {
	Identity         string `bson:"_id"`
	DisplayName      string `bson:"display_name"`
	SecretCommitment string `bson:"secret_commitment"`
	Role             int32  `bson:"role"`
	CreatedAt        int64  `bson:"created_at"`
}

func (r *UserRepository) RegisterUser(ctx context.Context, identity domain.Identity, displayName, secret string, role domain.Role) error {
	commit, err := commitment.Commit(secret)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoUser{
		Identity:         identity.String(),
		DisplayName:      displayName,
		SecretCommitment: commit,
		Role:             int32(role),
		CreatedAt:        time.Now().UTC().Unix(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// User returns Exists=false for an identity with no record.
func (r *UserRepository) User(ctx context.Context, identity domain.Identity) (domain.AuthorizationRecord, error) {
	mu, err := r.find(ctx, identity)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.AuthorizationRecord{Identity: identity}, nil
	}
	if err != nil {
		return domain.AuthorizationRecord{}, err
	}
	return mu.toRecord(), nil
}

func (r *UserRepository) Login(ctx context.Context, from domain.Identity, secret string) (bool, domain.Role, error) {
	mu, err := r.find(ctx, from)
	if err != nil {
		return false, 0, err
	}
	ok, err := commitment.Verify(mu.SecretCommitment, secret)
	if err != nil {
		return false, 0, fmt.Errorf("verify secret: %w", err)
	}
	if !ok {
		return false, 0, nil
	}
	return true, domain.Role(mu.Role), nil
}

func (r *UserRepository) find(ctx context.Context, identity domain.Identity) (*mongoUser, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, bson.M{"_id": identity.String()}).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &mu, nil
}

func (mu mongoUser) toRecord() domain.AuthorizationRecord {
	return domain.AuthorizationRecord{
		Identity:         domain.Identity(mu.Identity),
		DisplayName:      mu.DisplayName,
		SecretCommitment: mu.SecretCommitment,
		Role:             domain.Role(mu.Role),
		Exists:           true,
		CreatedAt:        unixToTime(mu.CreatedAt),
	}
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
