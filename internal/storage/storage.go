// Package storage persists the drawing API's data: one drawing document per
// user, user accounts, and revoked session tokens.
//
// Three backends implement Repository:
//   - memory: process-local maps, for development and tests
//   - redis: a shared Redis instance
//   - mongo: a MongoDB database
//
// Missing records are reported with errors.CodeNotFound and duplicate
// accounts with errors.CodeConflict.
package storage

import (
	"context"
	"time"

	"ShapeBoard/internal/errors"
)

// User is a registered account.
type User struct {
	Username     string    `json:"username" bson:"_id"`
	PasswordHash []byte    `json:"password_hash" bson:"password_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// StoredDrawing is a user's latest drawing document.
type StoredDrawing struct {
	Document  string    `json:"document" bson:"document"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Repository is the server's persistence boundary. Implementations are safe
// for concurrent use.
type Repository interface {
	GetDrawing(ctx context.Context, username string) (StoredDrawing, error)
	PutDrawing(ctx context.Context, username string, d StoredDrawing) error

	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, username string) (User, error)

	// RevokeToken marks a token id as unusable until it expires anyway.
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

func errNoDrawing(username string) error {
	return errors.New(errors.CodeNotFound, "no drawing saved for %s", username)
}

func errNoUser(username string) error {
	return errors.New(errors.CodeNotFound, "user %s not found", username)
}

func errUserExists(username string) error {
	return errors.New(errors.CodeConflict, "username %s is taken", username)
}
