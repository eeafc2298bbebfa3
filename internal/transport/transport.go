// Package transport implements the HTTP transport used by the shortcode OAuth client
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout bounds a single round-trip when the caller's context has no deadline
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the client to the authorization server
	DefaultUserAgent = "shortcode-oauth-go/1"
)

// Response is the result of a single call: status, the relative path that was
// requested and the raw body
type Response struct {
	StatusCode int
	Path       string
	Body       []byte
}

// Decode parses the JSON body into v
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body from %s", r.Path)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("parsing response from %s: %w", r.Path, err)
	}
	return nil
}

// Text returns the body as text
func (r *Response) Text() string {
	return string(r.Body)
}

// Client sends JSON requests relative to a base URL. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

// Option configures the transport
type Option func(*options)

type options struct {
	logger     zerolog.Logger
	timeout    time.Duration
	userAgent  string
	httpClient *http.Client
}

// WithLogger sets the logger used for round-trip diagnostics
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(o *options) {
		o.userAgent = ua
	}
}

// WithHTTPClient uses the given http.Client underneath resty
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// New creates a transport sending requests to paths below baseURL
func New(baseURL string, opts ...Option) *Client {
	o := options{
		logger:    zerolog.Nop(),
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var rc *resty.Client
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	} else {
		rc = resty.New()
	}

	c := &Client{logger: o.logger}
	c.http = rc.
		SetBaseURL(baseURL).
		SetTimeout(o.timeout).
		SetLogger(restyLogger{o.logger}).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": o.userAgent,
		}).
		OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
			c.logger.Debug().
				Str("method", res.Request.Method).
				Str("url", res.Request.URL).
				Int("status", res.StatusCode()).
				Dur("duration", res.Time()).
				Msg("oauth request completed")
			return nil
		})

	return c
}

// Do sends a request and returns the response regardless of its status code.
// A non-nil body is sent as JSON.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	req := c.http.NewRequest().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	return &Response{
		StatusCode: res.StatusCode(),
		Path:       path,
		Body:       res.Body(),
	}, nil
}

// restyLogger routes resty's internal messages to zerolog
type restyLogger struct {
	logger zerolog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error().Msgf(format, v...)
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn().Msgf(format, v...)
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug().Msgf(format, v...)
}
