// Package shortcode implements the shortcode OAuth 2.0 grant: the client shows
// a short code, the user enters it on a companion page and the client polls
// until access is granted, denied or the code expires.
//
// A typical flow restarts on expiry:
//
//	client := shortcode.NewClient(clientID, []string{"interactive:robot:self"})
//	tokens, err := client.Grant(ctx, func(code *shortcode.Shortcode) {
//		fmt.Printf("Go to mixer.com/go and enter %s\n", code.Code())
//	})
package shortcode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wrale/shortcode-oauth/internal/transport"
)

const (
	// DefaultHost is the production API base address
	DefaultHost = "https://mixer.com/api/v1/"

	// DefaultPollInterval is how often a pending shortcode is checked
	DefaultPollInterval = 2 * time.Second
)

// credentials is the immutable part of a client that a Shortcode needs to
// finish the exchange on its own
type credentials struct {
	clientID     string
	clientSecret string
	scopes       []string
	transport    Transport
	pollInterval time.Duration
	now          func() time.Time
}

// tokens exchanges req at the token endpoint and builds a TokenSet carrying scopes
func (c credentials) tokens(ctx context.Context, req tokenRequest, scopes []string) (*TokenSet, error) {
	res, err := c.transport.Do(ctx, http.MethodPost, tokenPath, req)
	if err != nil {
		return nil, transportError(ctx, "requesting tokens", err)
	}
	if res.StatusCode >= 300 {
		return nil, newUnexpectedHTTPError(res)
	}

	var body tokenResponse
	if err := res.Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}

	return newTokenSet(body, scopes, c.now()), nil
}

// Client requests shortcodes and refreshes tokens. It is safe for concurrent use.
type Client struct {
	creds credentials
	host  string
}

// NewClient creates a client for clientID requesting scopes
func NewClient(clientID string, scopes []string, opts ...Option) *Client {
	c := &Client{
		creds: credentials{
			clientID:     clientID,
			scopes:       append([]string(nil), scopes...),
			pollInterval: DefaultPollInterval,
			now:          time.Now,
		},
		host: DefaultHost,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.creds.pollInterval <= 0 {
		c.creds.pollInterval = DefaultPollInterval
	}
	if c.creds.now == nil {
		c.creds.now = time.Now
	}
	if c.creds.transport == nil {
		c.creds.transport = transport.New(c.host)
	}

	return c
}

// RequestCode starts a grant by asking the server for a new shortcode
func (c *Client) RequestCode(ctx context.Context) (*Shortcode, error) {
	res, err := c.creds.transport.Do(ctx, http.MethodPost, shortcodePath, shortcodeRequest{
		ClientID:     c.creds.clientID,
		ClientSecret: c.creds.clientSecret,
		Scope:        strings.Join(c.creds.scopes, " "),
	})
	if err != nil {
		return nil, transportError(ctx, "requesting shortcode", err)
	}
	if res.StatusCode >= 300 {
		return nil, newUnexpectedHTTPError(res)
	}

	var body shortcodeResponse
	if err := res.Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding shortcode response: %w", err)
	}

	return newShortcode(c.creds, body), nil
}

// Refresh exchanges the refresh token of tokens for a new TokenSet. Scopes
// are carried over from tokens; the previous refresh token is kept when the
// server does not issue a new one.
func (c *Client) Refresh(ctx context.Context, tokens *TokenSet) (*TokenSet, error) {
	if tokens == nil || tokens.RefreshToken() == "" {
		return nil, ErrNoRefreshToken
	}

	next, err := c.creds.tokens(ctx, tokenRequest{
		GrantType:    grantTypeRefreshToken,
		RefreshToken: tokens.RefreshToken(),
		ClientID:     c.creds.clientID,
		ClientSecret: c.creds.clientSecret,
	}, tokens.Scopes())
	if err != nil {
		return nil, err
	}

	if next.refreshToken == "" {
		next.refreshToken = tokens.refreshToken
	}
	return next, nil
}

// Grant runs the whole flow: it requests a shortcode, hands it to show for
// display and waits for the user. Expired codes are replaced by new ones and
// shown again until the user answers or ctx is done.
func (c *Client) Grant(ctx context.Context, show func(*Shortcode)) (*TokenSet, error) {
	for {
		code, err := c.RequestCode(ctx)
		if err != nil {
			return nil, err
		}
		show(code)

		tokens, err := code.Wait(ctx)
		if errors.Is(err, ErrShortCodeExpired) {
			continue
		}
		return tokens, err
	}
}
