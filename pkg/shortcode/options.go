package shortcode

import (
	"time"
)

// Option configures a Client
type Option func(*Client)

// WithClientSecret sets the OAuth client secret, if the client has one
func WithClientSecret(secret string) Option {
	return func(c *Client) {
		c.creds.clientSecret = secret
	}
}

// WithHost sets the API base address used by the default transport.
// It has no effect together with WithTransport.
func WithHost(host string) Option {
	return func(c *Client) {
		c.host = host
	}
}

// WithTransport replaces the default HTTP transport
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.creds.transport = t
	}
}

// WithPollInterval sets how long Wait sleeps between checks while the user
// has not answered yet
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.creds.pollInterval = d
	}
}

// WithClock sets the time source used for expiry computation
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.creds.now = now
	}
}
