package shortcode

import (
	"context"
	"sync"

	"golang.org/x/oauth2"
)

// TokenSource is an oauth2.TokenSource that refreshes its TokenSet through a
// Client once the access token expires
type TokenSource struct {
	ctx       context.Context
	client    *Client
	onRefresh func(*TokenSet)

	mu     sync.Mutex
	tokens *TokenSet
}

var _ oauth2.TokenSource = (*TokenSource)(nil)

// TokenSource returns a source starting from tokens. onRefresh, if not nil,
// is called with every new set so it can be persisted.
func (c *Client) TokenSource(ctx context.Context, tokens *TokenSet, onRefresh func(*TokenSet)) *TokenSource {
	return &TokenSource{
		ctx:       ctx,
		client:    c,
		onRefresh: onRefresh,
		tokens:    tokens,
	}
}

// Token returns a valid token, refreshing first if needed
func (s *TokenSource) Token() (*oauth2.Token, error) {
	tokens, err := s.TokenSet()
	if err != nil {
		return nil, err
	}
	return tokens.Token(), nil
}

// TokenSet returns the current valid set, refreshing first if needed
func (s *TokenSource) TokenSet() (*TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tokens.ExpiredAt(s.client.creds.now()) {
		return s.tokens, nil
	}

	next, err := s.client.Refresh(s.ctx, s.tokens)
	if err != nil {
		return nil, err
	}
	s.tokens = next
	if s.onRefresh != nil {
		s.onRefresh(next)
	}
	return next, nil
}
