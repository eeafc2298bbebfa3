// Package mockserver implements a local authorization server speaking the
// shortcode grant protocol. It backs the integration tests and the
// shortcode-mock command.
package mockserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wrale/shortcode-oauth/internal/csrf"
	"github.com/wrale/shortcode-oauth/internal/templates"
	"github.com/wrale/shortcode-oauth/internal/validation"
)

const (
	// DefaultCodeExpiry is the lifetime of an issued shortcode
	DefaultCodeExpiry = 2 * time.Minute

	// DefaultTokenExpiry is the lifetime of an issued access token
	DefaultTokenExpiry = 6 * time.Hour

	// DefaultBasePath is where the API routes are mounted
	DefaultBasePath = "/api/v1"

	authCodeBytes = 16
	tokenBytes    = 32
)

// Server is an in-memory shortcode authorization server
type Server struct {
	router  chi.Router
	store   *memoryStore
	metrics *metrics
	logger  zerolog.Logger
	pages   *templates.Templates
	csrf    *csrf.Manager

	csrfStore  csrf.Store
	csrfExpiry time.Duration

	clients     map[string]string
	basePath    string
	codeExpiry  time.Duration
	tokenExpiry time.Duration
	now         func() time.Time
	version     string
}

// New creates a server with the given options
func New(opts ...Option) *Server {
	s := &Server{
		store:       newMemoryStore(),
		logger:      zerolog.Nop(),
		basePath:    DefaultBasePath,
		codeExpiry:  DefaultCodeExpiry,
		tokenExpiry: DefaultTokenExpiry,
		now:         time.Now,
		version:     "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.codeExpiry <= 0 {
		s.codeExpiry = DefaultCodeExpiry
	}
	if s.tokenExpiry <= 0 {
		s.tokenExpiry = DefaultTokenExpiry
	}
	s.basePath = "/" + strings.Trim(s.basePath, "/")
	if s.csrfStore == nil {
		s.csrfStore = csrf.NewMemoryStore(s.now)
	}

	// Pages are embedded and the secret comes from crypto/rand, neither
	// fails on a working build
	pages, err := templates.LoadTemplates()
	if err != nil {
		panic(err)
	}
	secret, err := csrf.NewSecret()
	if err != nil {
		panic(err)
	}
	s.pages = pages
	s.csrf = csrf.NewManager(s.csrfStore, secret, s.csrfExpiry)

	s.metrics = newMetrics(func() float64 { return float64(s.store.pending()) })
	s.router = chi.NewRouter()
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.handler())

	api := func(r chi.Router) {
		r.Post("/oauth/shortcode", s.handleShortcode)
		r.Get("/oauth/shortcode/check/{handle}", s.handleCheck)
		r.Post("/oauth/token", s.handleToken)
		r.Get("/go", s.handleEnterForm)
		r.Post("/go", s.handleEnterSubmit)
		r.Post("/go/{code}/approve", s.handleApprove)
		r.Post("/go/{code}/deny", s.handleDeny)
	}
	if s.basePath == "/" {
		s.router.Group(api)
	} else {
		s.router.Route(s.basePath, api)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// BasePath returns the normalized path the API is mounted under
func (s *Server) BasePath() string {
	return s.basePath
}

// issue creates and stores a new grant for clientID
func (s *Server) issue(clientID, scope string) (*grant, error) {
	const maxAttempts = 10
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := generateShortcode()
		if err != nil {
			return nil, fmt.Errorf("generating shortcode: %w", err)
		}

		g := &grant{
			handle:    uuid.NewString(),
			code:      code,
			clientID:  clientID,
			scope:     scope,
			expiresAt: s.now().Add(s.codeExpiry),
			state:     statePending,
		}
		if s.store.add(g) {
			s.metrics.codesIssued.Inc()
			return g, nil
		}
	}
	return nil, fmt.Errorf("no free shortcode after %d attempts", maxAttempts)
}

// Approve grants access for code as the user would on the companion page
func (s *Server) Approve(ctx context.Context, code string) error {
	authCode, err := randomHex(authCodeBytes)
	if err != nil {
		return fmt.Errorf("generating authorization code: %w", err)
	}
	if err := s.answer(ctx, code, stateApproved, authCode); err != nil {
		return err
	}
	s.metrics.answers.WithLabelValues("approved").Inc()
	s.logger.Debug().Str("code", code).Msg("shortcode approved")
	return nil
}

// Deny refuses access for code as the user would on the companion page
func (s *Server) Deny(ctx context.Context, code string) error {
	if err := s.answer(ctx, code, stateDenied, ""); err != nil {
		return err
	}
	s.metrics.answers.WithLabelValues("denied").Inc()
	s.logger.Debug().Str("code", code).Msg("shortcode denied")
	return nil
}

// answer records the user's decision unless ctx is already done
func (s *Server) answer(ctx context.Context, code string, state grantState, authCode string) error {
	code = validation.NormalizeCode(code)
	if err := validation.ValidateShortcode(code); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.answer(code, state, authCode, s.now())
}

// authenticate checks the client credentials against the registered clients
func (s *Server) authenticate(clientID, secret string) bool {
	if clientID == "" {
		return false
	}
	if len(s.clients) == 0 {
		return true
	}
	want, ok := s.clients[clientID]
	return ok && want == secret
}

// tokens issues a new access and refresh token for sess
func (s *Server) tokens(sess session, grantType string) (*tokenResponse, error) {
	access, err := randomHex(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}
	refresh, err := randomHex(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	s.store.saveRefresh(refresh, sess)
	s.metrics.tokensIssued.WithLabelValues(grantType).Inc()

	return &tokenResponse{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: refresh,
		ExpiresIn:    int(s.tokenExpiry.Seconds()),
		Scope:        sess.scope,
	}, nil
}
