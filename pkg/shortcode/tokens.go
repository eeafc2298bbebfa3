package shortcode

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"golang.org/x/oauth2"
)

// TokenSet holds the access and refresh tokens granted by the user. It is
// immutable: refreshing produces a new TokenSet.
type TokenSet struct {
	accessToken  string
	refreshToken string
	scopes       map[string]struct{}
	expiresAt    time.Time
}

// newTokenSet creates a TokenSet from a token endpoint response. expiresAt is
// computed once from now and never recomputed.
func newTokenSet(res tokenResponse, scopes []string, now time.Time) *TokenSet {
	return &TokenSet{
		accessToken:  res.AccessToken,
		refreshToken: res.RefreshToken,
		scopes:       scopeSet(scopes),
		expiresAt:    now.Add(time.Duration(res.ExpiresIn) * time.Second),
	}
}

func scopeSet(scopes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}

// AccessToken returns the bearer credential
func (t *TokenSet) AccessToken() string {
	return t.accessToken
}

// RefreshToken returns the refresh token, empty if none was issued
func (t *TokenSet) RefreshToken() string {
	return t.refreshToken
}

// Scopes returns the granted scopes in sorted order
func (t *TokenSet) Scopes() []string {
	out := make([]string, 0, len(t.scopes))
	for s := range t.scopes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ExpiresAt returns the time at which the access token expires
func (t *TokenSet) ExpiresAt() time.Time {
	return t.expiresAt
}

// Expired reports whether the access token has expired
func (t *TokenSet) Expired() bool {
	return t.ExpiredAt(time.Now())
}

// ExpiredAt reports whether the access token is expired at the given instant
func (t *TokenSet) ExpiredAt(now time.Time) bool {
	return !now.Before(t.expiresAt)
}

// GrantedAll reports whether every one of scopes was granted. It is true for
// an empty list.
func (t *TokenSet) GrantedAll(scopes ...string) bool {
	for _, s := range scopes {
		if _, ok := t.scopes[s]; !ok {
			return false
		}
	}
	return true
}

// AuthorizationHeader returns the header to attach to API requests
func (t *TokenSet) AuthorizationHeader() http.Header {
	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+t.accessToken)
	return h
}

// Token converts the set for use with golang.org/x/oauth2
func (t *TokenSet) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.accessToken,
		TokenType:    "Bearer",
		RefreshToken: t.refreshToken,
		Expiry:       t.expiresAt,
	}
}

// tokenSetJSON is the persisted form of a TokenSet
type tokenSetJSON struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scopes       []string  `json:"scopes"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// MarshalJSON encodes the set for storage
func (t *TokenSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenSetJSON{
		AccessToken:  t.accessToken,
		RefreshToken: t.refreshToken,
		Scopes:       t.Scopes(),
		ExpiresAt:    t.expiresAt,
	})
}

// UnmarshalJSON restores a set previously encoded with MarshalJSON
func (t *TokenSet) UnmarshalJSON(data []byte) error {
	var v tokenSetJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.AccessToken == "" {
		return errors.New("token set: missing access_token")
	}

	*t = TokenSet{
		accessToken:  v.AccessToken,
		refreshToken: v.RefreshToken,
		scopes:       scopeSet(v.Scopes),
		expiresAt:    v.ExpiresAt,
	}
	return nil
}
