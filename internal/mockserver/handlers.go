package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wrale/shortcode-oauth/internal/validation"
)

const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"

	// maxBodyBytes bounds JSON request bodies
	maxBodyBytes = 1 << 16
)

type shortcodeRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Scope        string `json:"scope"`
}

type shortcodeResponse struct {
	Code      string `json:"code"`
	ExpiresIn int    `json:"expires_in"`
	Handle    string `json:"handle"`
}

type checkResponse struct {
	Code string `json:"code"`
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// healthResponse is the /health body
type healthResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// decodeJSON reads a JSON body into v, replying with invalid_request on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidRequest, "request body must be a JSON object")
		return false
	}
	return true
}

func (s *Server) handleShortcode(w http.ResponseWriter, r *http.Request) {
	var req shortcodeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, errInvalidRequest, "client_id is required")
		return
	}
	if !s.authenticate(req.ClientID, req.ClientSecret) {
		writeError(w, http.StatusUnauthorized, errInvalidClient, "unknown client or bad secret")
		return
	}

	s.store.sweep(s.now())
	g, err := s.issue(req.ClientID, req.Scope)
	if err != nil {
		s.logger.Error().Err(err).Msg("issuing shortcode")
		writeServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, shortcodeResponse{
		Code:      g.code,
		ExpiresIn: int(s.codeExpiry.Seconds()),
		Handle:    g.handle,
	})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	g, ok := s.store.check(chi.URLParam(r, "handle"), s.now())
	if !ok {
		s.metrics.checks.WithLabelValues("expired").Inc()
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch g.state {
	case stateApproved:
		s.metrics.checks.WithLabelValues("accepted").Inc()
		writeJSON(w, http.StatusOK, checkResponse{Code: g.authCode})
	case stateDenied:
		s.metrics.checks.WithLabelValues("denied").Inc()
		w.WriteHeader(http.StatusForbidden)
	default:
		s.metrics.checks.WithLabelValues("waiting").Inc()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !s.authenticate(req.ClientID, req.ClientSecret) {
		writeError(w, http.StatusUnauthorized, errInvalidClient, "unknown client or bad secret")
		return
	}

	var sess session
	switch req.GrantType {
	case grantTypeAuthorizationCode:
		g, ok := s.store.redeemAuthCode(req.Code, s.now())
		if !ok || g.clientID != req.ClientID {
			writeError(w, http.StatusBadRequest, errInvalidGrant, "authorization code is invalid, expired or already used")
			return
		}
		sess = session{clientID: g.clientID, scope: g.scope}
	case grantTypeRefreshToken:
		prev, ok := s.store.redeemRefresh(req.RefreshToken)
		if !ok || prev.clientID != req.ClientID {
			writeError(w, http.StatusBadRequest, errInvalidGrant, "refresh token is invalid or already used")
			return
		}
		sess = prev
	default:
		writeError(w, http.StatusBadRequest, errUnsupportedGrantType, "grant_type must be authorization_code or refresh_token")
		return
	}

	res, err := s.tokens(sess, req.GrantType)
	if err != nil {
		s.logger.Error().Err(err).Msg("issuing tokens")
		writeServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleAnswer(w, r, s.Approve)
}

func (s *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	s.handleAnswer(w, r, s.Deny)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request, answer func(ctx context.Context, code string) error) {
	err := answer(r.Context(), chi.URLParam(r, "code"))

	var vErr *validation.ValidationError
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, errInvalidRequest, vErr.Message)
	case errors.Is(err, ErrCodeNotFound):
		writeError(w, http.StatusNotFound, errInvalidRequest, err.Error())
	case errors.Is(err, ErrCodeAnswered):
		writeError(w, http.StatusConflict, errInvalidRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("answering shortcode")
		writeServerError(w)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.csrf.CheckHealth(r.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:  "unhealthy",
			Version: s.version,
			Details: map[string]any{"csrf_store": err.Error()},
		})
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Version: s.version,
		Details: map[string]any{
			"pending_grants": s.store.pending(),
		},
	})
}
