// Package csrf issues and checks the single-use form tokens that guard the
// companion page
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultExpiry is how long a form token stays usable
const DefaultExpiry = 15 * time.Minute

var (
	// ErrInvalidToken indicates a missing, forged or already used token
	ErrInvalidToken = errors.New("invalid csrf token")

	// ErrTokenExpired indicates the token outlived its expiry
	ErrTokenExpired = errors.New("csrf token expired")
)

// Store keeps issued tokens until they are used or expire
type Store interface {
	// SaveToken stores a token with expiry
	SaveToken(ctx context.Context, token string, expiresIn time.Duration) error

	// ConsumeToken removes a token, failing if it was never issued,
	// already consumed or has expired
	ConsumeToken(ctx context.Context, token string) error

	// CheckHealth verifies the store is operational
	CheckHealth(ctx context.Context) error
}

// Manager signs tokens and checks them against a Store
type Manager struct {
	store     Store
	secret    []byte
	expiresIn time.Duration
}

// NewManager creates a token manager. A zero expiresIn uses DefaultExpiry.
func NewManager(store Store, secret []byte, expiresIn time.Duration) *Manager {
	if expiresIn <= 0 {
		expiresIn = DefaultExpiry
	}
	return &Manager{
		store:     store,
		secret:    secret,
		expiresIn: expiresIn,
	}
}

// NewSecret returns a random signing key
func NewSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating secret: %w", err)
	}
	return secret, nil
}

// GenerateToken creates and stores a new token
func (m *Manager) GenerateToken(ctx context.Context) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}

	nonce := base64.RawURLEncoding.EncodeToString(raw)
	token := nonce + "." + base64.RawURLEncoding.EncodeToString(m.sign(nonce))

	if err := m.store.SaveToken(ctx, token, m.expiresIn); err != nil {
		return "", fmt.Errorf("saving token: %w", err)
	}
	return token, nil
}

// ValidateToken checks the signature of token and consumes it. A token
// passes at most once.
func (m *Manager) ValidateToken(ctx context.Context, token string) error {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return ErrInvalidToken
	}

	actual, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(m.sign(nonce), actual) {
		return ErrInvalidToken
	}

	if err := m.store.ConsumeToken(ctx, token); err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	return nil
}

// CheckHealth verifies the underlying store is operational
func (m *Manager) CheckHealth(ctx context.Context) error {
	if err := m.store.CheckHealth(ctx); err != nil {
		return fmt.Errorf("csrf store health check failed: %w", err)
	}
	return nil
}

func (m *Manager) sign(nonce string) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(nonce))
	return h.Sum(nil)
}
