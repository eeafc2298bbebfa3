package shortcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Outcomes of a shortcode grant that are not tokens
var (
	// ErrShortCodeExpired indicates the shortcode expired before the user entered it.
	// Callers usually request a new code and start over.
	ErrShortCodeExpired = errors.New("shortcode handle has expired")

	// ErrAccessDenied indicates the user refused access to the client
	ErrAccessDenied = errors.New("user has denied access")

	// ErrNoRefreshToken indicates a refresh was attempted on tokens without a refresh token
	ErrNoRefreshToken = errors.New("token set has no refresh token")
)

// ErrorCode is an OAuth error slug per RFC 6749 section 5.2
type ErrorCode string

// Error codes returned by the token and shortcode endpoints
const (
	ErrorCodeInvalidRequest       ErrorCode = "invalid_request"
	ErrorCodeInvalidClient        ErrorCode = "invalid_client"
	ErrorCodeInvalidGrant         ErrorCode = "invalid_grant"
	ErrorCodeUnauthorizedClient   ErrorCode = "unauthorized_client"
	ErrorCodeUnsupportedGrantType ErrorCode = "unsupported_grant_type"
	ErrorCodeInvalidScope         ErrorCode = "invalid_scope"

	// ErrorCodeAccessDenied can be returned when the user clicks "Deny" on the
	// companion page
	ErrorCodeAccessDenied ErrorCode = "access_denied"
)

// ErrorResponse is a structured OAuth error body
type ErrorResponse struct {
	Error       ErrorCode `json:"error"`
	Description string    `json:"error_description,omitempty"`
	URI         string    `json:"error_uri,omitempty"`
}

// UnexpectedHTTPError is returned for any status outside the documented
// contract of an endpoint, including structured OAuth errors from the token
// endpoint. It carries everything needed to diagnose the failure.
type UnexpectedHTTPError struct {
	StatusCode int
	Path       string
	Body       string

	// OAuth is set when the body was a structured OAuth error
	OAuth *ErrorResponse
}

func (e *UnexpectedHTTPError) Error() string {
	if e.OAuth != nil {
		msg := fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.Path, e.OAuth.Error)
		if e.OAuth.Description != "" {
			msg += ": " + e.OAuth.Description
		}
		return msg
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.Path, e.Body)
}

// Code returns the OAuth error slug, or "" when the body was not structured
func (e *UnexpectedHTTPError) Code() ErrorCode {
	if e.OAuth == nil {
		return ""
	}
	return e.OAuth.Error
}

// newUnexpectedHTTPError builds the error for res. Bodies that do not parse
// as an OAuth error degrade to raw status, path and text.
func newUnexpectedHTTPError(res *Response) *UnexpectedHTTPError {
	e := &UnexpectedHTTPError{
		StatusCode: res.StatusCode,
		Path:       res.Path,
		Body:       res.Text(),
	}

	var oauthErr ErrorResponse
	if err := json.Unmarshal(res.Body, &oauthErr); err == nil && oauthErr.Error != "" {
		e.OAuth = &oauthErr
	}

	return e
}

// transportError reports a failed round-trip. Cancellation of ctx wins over
// whatever the transport returned.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%s: %w", op, err)
}
