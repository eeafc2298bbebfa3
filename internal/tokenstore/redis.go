package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wrale/shortcode-oauth/pkg/shortcode"
)

const tokensPrefix = "tokens:"

// RedisStore implements Store using Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithTTL expires stored sets after d. Zero keeps them until deleted.
func WithTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = d
	}
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Save stores tokens under key
func (s *RedisStore) Save(ctx context.Context, key string, tokens *shortcode.TokenSet) error {
	if key == "" {
		return ErrEmptyKey
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshaling tokens: %w", err)
	}

	if err := s.client.Set(ctx, tokensPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}
	return nil
}

// Load retrieves the set stored under key
func (s *RedisStore) Load(ctx context.Context, key string) (*shortcode.TokenSet, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	data, err := s.client.Get(ctx, tokensPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting tokens: %w", err)
	}

	var tokens shortcode.TokenSet
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("unmarshaling tokens: %w", err)
	}
	return &tokens, nil
}

// Delete removes the set stored under key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.client.Del(ctx, tokensPrefix+key).Err(); err != nil {
		return fmt.Errorf("deleting tokens: %w", err)
	}
	return nil
}
