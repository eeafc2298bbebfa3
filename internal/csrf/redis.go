package csrf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "csrf:"

// RedisStore implements the Store interface using Redis. Expired tokens
// are removed by Redis and report as invalid.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed token store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// SaveToken stores a token with expiration
func (s *RedisStore) SaveToken(ctx context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return errors.New("empty token")
	}

	if err := s.client.Set(ctx, tokenPrefix+token, "1", expiresIn).Err(); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return nil
}

// ConsumeToken atomically reads and deletes token
func (s *RedisStore) ConsumeToken(ctx context.Context, token string) error {
	err := s.client.GetDel(ctx, tokenPrefix+token).Err()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	return nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
