// Package integration runs the shortcode client end to end against the
// in-process mock authorization server
package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/wrale/shortcode-oauth/internal/mockserver"
	"github.com/wrale/shortcode-oauth/internal/transport"
	"github.com/wrale/shortcode-oauth/pkg/shortcode"
)

// Timeouts and delays
const (
	SuiteTimeout = 30 * time.Second
	PollInterval = 10 * time.Millisecond
)

// TestSuite provides shared functionality for integration tests
type TestSuite struct {
	T         *testing.T
	Ctx       context.Context
	Server    *mockserver.Server
	HTTP      *httptest.Server
	Client    *http.Client
	Transport *transport.Client
}

// NewSuite starts a mock server configured by opts and a transport shared by
// every client the suite creates
func NewSuite(t *testing.T, opts ...mockserver.Option) *TestSuite {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), SuiteTimeout)
	t.Cleanup(cancel)

	srv := mockserver.New(opts...)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &TestSuite{
		T:         t,
		Ctx:       ctx,
		Server:    srv,
		HTTP:      ts,
		Client:    &http.Client{Timeout: 10 * time.Second},
		Transport: transport.New(ts.URL+srv.BasePath()+"/", transport.WithTimeout(5*time.Second)),
	}
}

// NewClient creates a shortcode client talking to the suite's server
func (s *TestSuite) NewClient(clientID string, scopes []string, opts ...shortcode.Option) *shortcode.Client {
	base := []shortcode.Option{
		shortcode.WithTransport(s.Transport),
		shortcode.WithPollInterval(PollInterval),
	}
	return shortcode.NewClient(clientID, scopes, append(base, opts...)...)
}

// WaitForServices waits until the server reports healthy
func (s *TestSuite) WaitForServices() error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(s.Ctx, http.MethodGet, s.HTTP.URL+"/health", nil)
		if err != nil {
			return fmt.Errorf("creating health request: %w", err)
		}
		resp, err := s.Client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("health returned status %d", resp.StatusCode)
		}

		select {
		case <-s.Ctx.Done():
			return fmt.Errorf("timeout waiting for server: %w", err)
		case <-ticker.C:
		}
	}
}

// Approve enters code on the companion page and grants access
func (s *TestSuite) Approve(code string) error {
	return s.answer(code, "approve")
}

// Deny enters code on the companion page and refuses access
func (s *TestSuite) Deny(code string) error {
	return s.answer(code, "deny")
}

func (s *TestSuite) answer(code, decision string) error {
	endpoint := fmt.Sprintf("%s%s/go/%s/%s", s.HTTP.URL, s.Server.BasePath(), url.PathEscape(code), decision)
	req, err := http.NewRequestWithContext(s.Ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", decision, err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", decision, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%s returned status %d", decision, resp.StatusCode)
	}
	return nil
}

// SubmitPage answers code through the companion page the way a browser
// would, returning the status and body of the result page
func (s *TestSuite) SubmitPage(code, decision string) (int, string, error) {
	pageURL := s.HTTP.URL + s.Server.EnterPath()

	status, page, err := s.fetch(http.MethodGet, pageURL+"?code="+url.QueryEscape(code), nil)
	if err != nil {
		return 0, "", err
	}
	if status != http.StatusOK {
		return status, page, fmt.Errorf("companion page returned status %d", status)
	}

	token := s.ExtractCSRFToken(page)
	if token == "" {
		return 0, page, fmt.Errorf("no csrf token on companion page")
	}

	form := url.Values{
		"code":       {code},
		"decision":   {decision},
		"csrf_token": {token},
	}
	return s.fetch(http.MethodPost, pageURL, form)
}

func (s *TestSuite) fetch(method, target string, form url.Values) (int, string, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(s.Ctx, method, target, body)
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("reading body: %w", err)
	}
	return resp.StatusCode, string(data), nil
}

// ExtractCSRFToken extracts the csrf token from an HTML form
func (s *TestSuite) ExtractCSRFToken(html string) string {
	const marker = `name="csrf_token" value="`
	if i := strings.Index(html, marker); i >= 0 {
		html = html[i+len(marker):]
		if i := strings.Index(html, `"`); i > 0 {
			return html[:i]
		}
	}
	return ""
}
