package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ShapeBoard/internal/errors"
)

const keyPrefix = "shapeboard:"

// RedisConfig selects the Redis instance.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore keeps records as JSON values under shapeboard:* keys. Revoked
// tokens carry a TTL so Redis drops them once they would have expired.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func drawingKey(username string) string { return keyPrefix + "drawing:" + username }
func userKey(username string) string    { return keyPrefix + "user:" + username }
func revokedKey(tokenID string) string  { return keyPrefix + "revoked:" + tokenID }

func (s *RedisStore) GetDrawing(ctx context.Context, username string) (StoredDrawing, error) {
	var d StoredDrawing
	if err := s.getJSON(ctx, drawingKey(username), &d); err != nil {
		if stderrors.Is(err, redis.Nil) {
			return StoredDrawing{}, errNoDrawing(username)
		}
		return StoredDrawing{}, err
	}
	return d, nil
}

func (s *RedisStore) PutDrawing(ctx context.Context, username string, d StoredDrawing) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal drawing: %w", err)
	}
	if err := s.client.Set(ctx, drawingKey(username), data, 0).Err(); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "store drawing")
	}
	return nil
}

func (s *RedisStore) CreateUser(ctx context.Context, u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	ok, err := s.client.SetNX(ctx, userKey(u.Username), data, 0).Result()
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "create user")
	}
	if !ok {
		return errUserExists(u.Username)
	}
	return nil
}

func (s *RedisStore) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	if err := s.getJSON(ctx, userKey(username), &u); err != nil {
		if stderrors.Is(err, redis.Nil) {
			return User{}, errNoUser(username)
		}
		return User{}, err
	}
	return u, nil
}

func (s *RedisStore) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "revoke token")
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "check token")
	}
	return n > 0, nil
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }
func (s *RedisStore) Close() error                   { return s.client.Close() }

// getJSON returns redis.Nil unwrapped for missing keys.
func (s *RedisStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return err
		}
		return errors.Wrap(errors.CodeInternal, err, "get %s", key)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "decode %s", key)
	}
	return nil
}

var _ Repository = (*RedisStore)(nil)
