package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ShapeBoard/internal/errors"
)

// MongoConfig selects the MongoDB deployment and database.
type MongoConfig struct {
	URI      string
	Database string
}

// MongoStore keeps drawings, users and revoked tokens in three collections,
// each keyed by _id. Revoked tokens expire through a TTL index.
type MongoStore struct {
	client   *mongo.Client
	drawings *mongo.Collection
	users    *mongo.Collection
	revoked  *mongo.Collection
	now      func() time.Time
}

type drawingDoc struct {
	Username      string `bson:"_id"`
	StoredDrawing `bson:",inline"`
}

type revokedDoc struct {
	TokenID   string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// NewMongoStore connects, pings and ensures the TTL index exists.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := newMongoStore(client, client.Database(cfg.Database))
	_, err = s.revoked.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("create ttl index: %w", err)
	}
	return s, nil
}

func newMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:   client,
		drawings: db.Collection("drawings"),
		users:    db.Collection("users"),
		revoked:  db.Collection("revoked_tokens"),
		now:      time.Now,
	}
}

func (s *MongoStore) GetDrawing(ctx context.Context, username string) (StoredDrawing, error) {
	var doc drawingDoc
	err := s.drawings.FindOne(ctx, bson.M{"_id": username}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return StoredDrawing{}, errNoDrawing(username)
	}
	if err != nil {
		return StoredDrawing{}, errors.Wrap(errors.CodeInternal, err, "find drawing")
	}
	return doc.StoredDrawing, nil
}

func (s *MongoStore) PutDrawing(ctx context.Context, username string, d StoredDrawing) error {
	_, err := s.drawings.ReplaceOne(ctx,
		bson.M{"_id": username},
		drawingDoc{Username: username, StoredDrawing: d},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "store drawing")
	}
	return nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return errUserExists(u.Username)
	}
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "create user")
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	err := s.users.FindOne(ctx, bson.M{"_id": username}).Decode(&u)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return User{}, errNoUser(username)
	}
	if err != nil {
		return User{}, errors.Wrap(errors.CodeInternal, err, "find user")
	}
	return u, nil
}

func (s *MongoStore) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := s.revoked.ReplaceOne(ctx,
		bson.M{"_id": tokenID},
		revokedDoc{TokenID: tokenID, ExpiresAt: expiresAt},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "revoke token")
	}
	return nil
}

func (s *MongoStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var doc revokedDoc
	err := s.revoked.FindOne(ctx, bson.M{"_id": tokenID}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "check token")
	}
	// the TTL monitor runs about once a minute
	return s.now().Before(doc.ExpiresAt), nil
}

func (s *MongoStore) Ping(ctx context.Context) error { return s.client.Ping(ctx, nil) }

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ Repository = (*MongoStore)(nil)
