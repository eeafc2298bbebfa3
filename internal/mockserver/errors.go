package mockserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrCodeNotFound indicates no live grant uses the shortcode
	ErrCodeNotFound = errors.New("shortcode not found or expired")

	// ErrCodeAnswered indicates the grant was already approved or denied
	ErrCodeAnswered = errors.New("shortcode already answered")
)

// OAuth error slugs per RFC 6749 section 5.2
const (
	errInvalidRequest       = "invalid_request"
	errInvalidClient        = "invalid_client"
	errInvalidGrant         = "invalid_grant"
	errUnsupportedGrantType = "unsupported_grant_type"
	errServerError          = "server_error"
)

// errorResponse is the RFC 6749 error body
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// setJSONHeaders sets the headers every JSON response carries
func setJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// writeJSON sends v with status
func writeJSON(w http.ResponseWriter, status int, v any) {
	setJSONHeaders(w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone, nothing left to report to the client
		return
	}
}

// writeError sends a standardized OAuth error response
func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	})
}

// writeServerError reports a failure that is not the client's fault
func writeServerError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, errServerError, "internal error")
}
