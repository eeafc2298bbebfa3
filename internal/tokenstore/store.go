// Package tokenstore persists shortcode token sets between runs
package tokenstore

import (
	"context"
	"errors"

	"github.com/wrale/shortcode-oauth/pkg/shortcode"
)

// ErrEmptyKey is returned when a store operation gets an empty key
var ErrEmptyKey = errors.New("token store key must not be empty")

// Store defines the interface for token set storage
type Store interface {
	// Save stores tokens under key, replacing any previous set
	Save(ctx context.Context, key string, tokens *shortcode.TokenSet) error

	// Load returns the set stored under key, or nil when there is none
	Load(ctx context.Context, key string) (*shortcode.TokenSet, error)

	// Delete removes the set stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// CheckHealth verifies the storage backend is usable
	CheckHealth(ctx context.Context) error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*FileStore)(nil)
)
