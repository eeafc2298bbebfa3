package mockserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func requestCode(t *testing.T, srv http.Handler) shortcodeResponse {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/v1/oauth/shortcode", shortcodeRequest{
		ClientID: "client",
		Scope:    "chat:connect user:read",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("shortcode status = %d, body %s", rec.Code, rec.Body)
	}
	return decode[shortcodeResponse](t, rec)
}

func TestShortcodeApproveAndExchange(t *testing.T) {
	srv := New(WithTokenExpiry(time.Hour))
	sc := requestCode(t, srv)

	if sc.ExpiresIn != int(DefaultCodeExpiry.Seconds()) {
		t.Errorf("expires_in = %d, want %d", sc.ExpiresIn, int(DefaultCodeExpiry.Seconds()))
	}
	checkPath := "/api/v1/oauth/shortcode/check/" + sc.Handle

	if rec := do(t, srv, http.MethodGet, checkPath, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("check before answer = %d, want 204", rec.Code)
	}

	if rec := do(t, srv, http.MethodPost, "/api/v1/go/"+strings.ToLower(sc.Code)+"/approve", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("approve = %d, body %s", rec.Code, rec.Body)
	}

	rec := do(t, srv, http.MethodGet, checkPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("check after approve = %d, want 200", rec.Code)
	}
	authCode := decode[checkResponse](t, rec).Code
	if authCode == "" {
		t.Fatal("check returned an empty authorization code")
	}

	if rec := do(t, srv, http.MethodGet, checkPath, nil); rec.Code != http.StatusNotFound {
		t.Errorf("check after collection = %d, want 404", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/oauth/token", tokenRequest{
		GrantType: grantTypeAuthorizationCode,
		Code:      authCode,
		ClientID:  "client",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("exchange = %d, body %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
	tokens := decode[tokenResponse](t, rec)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Errorf("exchange returned incomplete tokens: %+v", tokens)
	}
	if tokens.ExpiresIn != 3600 || tokens.TokenType != "Bearer" || tokens.Scope != "chat:connect user:read" {
		t.Errorf("exchange returned %+v", tokens)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/oauth/token", tokenRequest{
		GrantType: grantTypeAuthorizationCode,
		Code:      authCode,
		ClientID:  "client",
	})
	if rec.Code != http.StatusBadRequest || decode[errorResponse](t, rec).Error != errInvalidGrant {
		t.Errorf("second exchange = %d %s, want 400 invalid_grant", rec.Code, rec.Body)
	}
}

func TestRefreshRotation(t *testing.T) {
	srv := New()
	sc := requestCode(t, srv)
	if err := srv.Approve(context.Background(), sc.Code); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	authCode := decode[checkResponse](t, do(t, srv, http.MethodGet, "/api/v1/oauth/shortcode/check/"+sc.Handle, nil)).Code
	first := decode[tokenResponse](t, do(t, srv, http.MethodPost, "/api/v1/oauth/token", tokenRequest{
		GrantType: grantTypeAuthorizationCode, Code: authCode, ClientID: "client",
	}))

	rec := do(t, srv, http.MethodPost, "/api/v1/oauth/token", tokenRequest{
		GrantType: grantTypeRefreshToken, RefreshToken: first.RefreshToken, ClientID: "client",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d, body %s", rec.Code, rec.Body)
	}
	second := decode[tokenResponse](t, rec)
	if second.RefreshToken == first.RefreshToken || second.AccessToken == first.AccessToken {
		t.Error("refresh did not rotate tokens")
	}
	if second.Scope != "chat:connect user:read" {
		t.Errorf("refreshed scope = %q", second.Scope)
	}

	tests := []struct {
		name     string
		req      tokenRequest
		wantCode int
		wantErr  string
	}{
		{
			name:     "reused refresh token",
			req:      tokenRequest{GrantType: grantTypeRefreshToken, RefreshToken: first.RefreshToken, ClientID: "client"},
			wantCode: http.StatusBadRequest,
			wantErr:  errInvalidGrant,
		},
		{
			name:     "other client",
			req:      tokenRequest{GrantType: grantTypeRefreshToken, RefreshToken: second.RefreshToken, ClientID: "intruder"},
			wantCode: http.StatusBadRequest,
			wantErr:  errInvalidGrant,
		},
		{
			name:     "unsupported grant",
			req:      tokenRequest{GrantType: "password", ClientID: "client"},
			wantCode: http.StatusBadRequest,
			wantErr:  errUnsupportedGrantType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/oauth/token", tt.req)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := decode[errorResponse](t, rec).Error; got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestDenyIsSticky(t *testing.T) {
	srv := New()
	sc := requestCode(t, srv)
	checkPath := "/api/v1/oauth/shortcode/check/" + sc.Handle

	if rec := do(t, srv, http.MethodPost, "/api/v1/go/"+sc.Code+"/deny", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("deny = %d, body %s", rec.Code, rec.Body)
	}
	for i := 0; i < 2; i++ {
		if rec := do(t, srv, http.MethodGet, checkPath, nil); rec.Code != http.StatusForbidden {
			t.Errorf("check %d after deny = %d, want 403", i, rec.Code)
		}
	}

	if rec := do(t, srv, http.MethodPost, "/api/v1/go/"+sc.Code+"/approve", nil); rec.Code != http.StatusConflict {
		t.Errorf("approve after deny = %d, want 409", rec.Code)
	}
	if err := srv.Approve(context.Background(), sc.Code); !errors.Is(err, ErrCodeAnswered) {
		t.Errorf("Approve() error = %v, want %v", err, ErrCodeAnswered)
	}
}

func TestCodeExpiry(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	srv := New(WithClock(clock.Now), WithCodeExpiry(30*time.Second))
	sc := requestCode(t, srv)

	if sc.ExpiresIn != 30 {
		t.Errorf("expires_in = %d, want 30", sc.ExpiresIn)
	}

	clock.Advance(30 * time.Second)

	if rec := do(t, srv, http.MethodGet, "/api/v1/oauth/shortcode/check/"+sc.Handle, nil); rec.Code != http.StatusNotFound {
		t.Errorf("check after expiry = %d, want 404", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/go/"+sc.Code+"/approve", nil); rec.Code != http.StatusNotFound {
		t.Errorf("approve after expiry = %d, want 404", rec.Code)
	}
}

func TestUnknownHandle(t *testing.T) {
	srv := New()
	if rec := do(t, srv, http.MethodGet, "/api/v1/oauth/shortcode/check/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("check unknown handle = %d, want 404", rec.Code)
	}
}

func TestAnswerValidation(t *testing.T) {
	srv := New()

	tests := []struct {
		name     string
		code     string
		wantCode int
	}{
		{name: "malformed code", code: "AEIOU0", wantCode: http.StatusBadRequest},
		{name: "wrong length", code: "BCD", wantCode: http.StatusBadRequest},
		{name: "unknown code", code: "BCD234", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/go/"+tt.code+"/approve", nil)
			if rec.Code != tt.wantCode {
				t.Errorf("approve %q = %d, want %d", tt.code, rec.Code, tt.wantCode)
			}
			if got := decode[errorResponse](t, rec).Error; got != errInvalidRequest {
				t.Errorf("error = %q, want %q", got, errInvalidRequest)
			}
		})
	}
}

func TestAnswerHonorsCancelledContext(t *testing.T) {
	srv := New()
	sc := requestCode(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := srv.Approve(ctx, sc.Code); !errors.Is(err, context.Canceled) {
		t.Errorf("Approve() error = %v, want %v", err, context.Canceled)
	}
	if err := srv.Deny(ctx, sc.Code); !errors.Is(err, context.Canceled) {
		t.Errorf("Deny() error = %v, want %v", err, context.Canceled)
	}

	rec := do(t, srv, http.MethodGet, "/api/v1/oauth/shortcode/check/"+sc.Handle, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("check after cancelled answers = %d, want 204", rec.Code)
	}

	if err := srv.Approve(context.Background(), sc.Code); err != nil {
		t.Errorf("Approve() error = %v", err)
	}
}

func TestClientAuthentication(t *testing.T) {
	srv := New(WithClients(map[string]string{
		"confidential": "s3cret",
		"public":       "",
	}))

	tests := []struct {
		name     string
		req      shortcodeRequest
		wantCode int
		wantErr  string
	}{
		{name: "confidential client", req: shortcodeRequest{ClientID: "confidential", ClientSecret: "s3cret"}, wantCode: http.StatusOK},
		{name: "public client", req: shortcodeRequest{ClientID: "public"}, wantCode: http.StatusOK},
		{name: "wrong secret", req: shortcodeRequest{ClientID: "confidential", ClientSecret: "guess"}, wantCode: http.StatusUnauthorized, wantErr: errInvalidClient},
		{name: "unknown client", req: shortcodeRequest{ClientID: "stranger"}, wantCode: http.StatusUnauthorized, wantErr: errInvalidClient},
		{name: "missing client", req: shortcodeRequest{}, wantCode: http.StatusBadRequest, wantErr: errInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/oauth/shortcode", tt.req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantErr != "" {
				if got := decode[errorResponse](t, rec).Error; got != tt.wantErr {
					t.Errorf("error = %q, want %q", got, tt.wantErr)
				}
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	srv := New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/oauth/shortcode", strings.NewReader("client_id=x"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if got := decode[errorResponse](t, rec).Error; got != errInvalidRequest {
		t.Errorf("error = %q, want %q", got, errInvalidRequest)
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		name     string
		basePath string
		want     string
		path     string
	}{
		{name: "root", basePath: "/", want: "/", path: "/oauth/shortcode"},
		{name: "empty", basePath: "", want: "/", path: "/oauth/shortcode"},
		{name: "trailing slash", basePath: "api/v2/", want: "/api/v2", path: "/api/v2/oauth/shortcode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(WithBasePath(tt.basePath))
			if srv.BasePath() != tt.want {
				t.Errorf("BasePath() = %q, want %q", srv.BasePath(), tt.want)
			}
			rec := do(t, srv, http.MethodPost, tt.path, shortcodeRequest{ClientID: "client"})
			if rec.Code != http.StatusOK {
				t.Errorf("POST %s = %d, want 200", tt.path, rec.Code)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	srv := New(WithVersion("1.2.3"))
	requestCode(t, srv)

	rec := do(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}

	want := healthResponse{
		Status:  "healthy",
		Version: "1.2.3",
		Details: map[string]any{"pending_grants": float64(1)},
	}
	if diff := cmp.Diff(want, decode[healthResponse](t, rec)); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}
}

func TestHealthUnhealthyStore(t *testing.T) {
	srv := New(WithCSRFStore(brokenStore{}))

	rec := do(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health = %d, want 503", rec.Code)
	}
	if got := decode[healthResponse](t, rec).Status; got != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", got)
	}
}

func TestMetrics(t *testing.T) {
	srv := New()
	sc := requestCode(t, srv)
	do(t, srv, http.MethodGet, "/api/v1/oauth/shortcode/check/"+sc.Handle, nil)

	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"shortcode_codes_issued_total 1",
		`shortcode_checks_total{result="waiting"} 1`,
		"shortcode_pending_grants 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
