package csrf

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore keeps tokens in process memory
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

// NewMemoryStore creates an empty store. A nil now uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		tokens: make(map[string]time.Time),
		now:    now,
	}
}

// SaveToken stores token and drops any that have expired
func (s *MemoryStore) SaveToken(ctx context.Context, token string, expiresIn time.Duration) error {
	if token == "" {
		return errors.New("empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for t, expiresAt := range s.tokens {
		if !now.Before(expiresAt) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = now.Add(expiresIn)
	return nil
}

// ConsumeToken removes token
func (s *MemoryStore) ConsumeToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.tokens[token]
	if !ok {
		return ErrInvalidToken
	}
	delete(s.tokens, token)

	if !s.now().Before(expiresAt) {
		return ErrTokenExpired
	}
	return nil
}

// CheckHealth always succeeds
func (s *MemoryStore) CheckHealth(ctx context.Context) error {
	return nil
}

// Len reports the number of stored tokens
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
