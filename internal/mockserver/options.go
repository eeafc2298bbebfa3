package mockserver

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/wrale/shortcode-oauth/internal/csrf"
)

// Option configures the server
type Option func(*Server)

// WithCodeExpiry sets how long an issued shortcode stays usable
func WithCodeExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.codeExpiry = d
	}
}

// WithTokenExpiry sets the lifetime of issued access tokens
func WithTokenExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.tokenExpiry = d
	}
}

// WithClients restricts access to the given client IDs and secrets. An
// empty secret registers a public client. Without registered clients any
// non-empty client ID is accepted.
func WithClients(clients map[string]string) Option {
	return func(s *Server) {
		s.clients = make(map[string]string, len(clients))
		for id, secret := range clients {
			s.clients[id] = secret
		}
	}
}

// WithBasePath mounts the API routes under p
func WithBasePath(p string) Option {
	return func(s *Server) {
		s.basePath = p
	}
}

// WithLogger sets the request logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock sets the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithVersion sets the version reported by /health
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithCSRFStore keeps the companion page's form tokens in store instead of
// process memory
func WithCSRFStore(store csrf.Store) Option {
	return func(s *Server) {
		s.csrfStore = store
	}
}

// WithCSRFExpiry sets how long a rendered companion form can be submitted
func WithCSRFExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.csrfExpiry = d
	}
}
