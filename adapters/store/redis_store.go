package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/nftgate/core"
	"github.com/layer-3/nftgate/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the CredentialStore interface.
// Each client keeps its credential under its own key, expiring with the session.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis store for the client identified by clientID
func NewRedisStore(client *redis.Client, clientID string) ports.CredentialStore {
	return &RedisStore{
		client: client,
		key:    "nftgate:credential:" + clientID,
		ttl:    core.DefaultSessionTTL,
	}
}

// Load returns the stored credential
func (s *RedisStore) Load(ctx context.Context) (string, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", core.ErrNoCredential
		}
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	return val, nil
}

// Save stores the credential with the session lifetime as TTL
func (s *RedisStore) Save(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Clear removes the stored credential
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
