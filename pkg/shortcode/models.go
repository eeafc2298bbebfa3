package shortcode

// Endpoint paths relative to the configured host
const (
	shortcodePath = "oauth/shortcode"
	checkPath     = "oauth/shortcode/check/"
	tokenPath     = "oauth/token"
)

// Grant types sent to the token endpoint
const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"
)

// shortcodeRequest asks the server for a new shortcode
type shortcodeRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Scope        string `json:"scope"`
}

// shortcodeResponse is returned when a shortcode is created
type shortcodeResponse struct {
	Code      string `json:"code"`
	ExpiresIn int    `json:"expires_in"` // seconds
	Handle    string `json:"handle"`
}

// checkResponse is returned by the check endpoint once the user accepted
type checkResponse struct {
	Code string `json:"code"` // authorization code
}

// tokenRequest covers both the authorization_code and refresh_token grants
type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// tokenResponse per RFC 6749 section 5.1
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"` // seconds
	Scope        string `json:"scope,omitempty"`
}
