package mockserver

import (
	"context"
	"errors"
	"net/http"
	"path"

	"github.com/wrale/shortcode-oauth/internal/templates"
	"github.com/wrale/shortcode-oauth/internal/validation"
)

const (
	decisionApprove = "approve"
	decisionDeny    = "deny"
)

// EnterPath returns the URL path of the companion page users open to enter
// their shortcode
func (s *Server) EnterPath() string {
	return path.Join(s.basePath, "go")
}

func setHTMLHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Options", "DENY")
}

// handleEnterForm shows the code entry form, prefilled from ?code=
func (s *Server) handleEnterForm(w http.ResponseWriter, r *http.Request) {
	s.renderEnter(w, r, http.StatusOK, r.URL.Query().Get("code"), "")
}

// handleEnterSubmit answers the grant for the submitted code
func (s *Server) handleEnterSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.renderResult(w, http.StatusBadRequest, templates.ResultData{
			Title:   "Invalid request",
			Message: "The form could not be read.",
			Back:    s.EnterPath(),
		})
		return
	}

	code := r.PostFormValue("code")
	if err := s.csrf.ValidateToken(r.Context(), r.PostFormValue("csrf_token")); err != nil {
		s.logger.Debug().Err(err).Msg("rejected companion form")
		s.renderEnter(w, r, http.StatusBadRequest, code, "This form has expired. Please submit the code again.")
		return
	}

	var answer func(ctx context.Context, code string) error
	switch r.PostFormValue("decision") {
	case decisionApprove:
		answer = s.Approve
	case decisionDeny:
		answer = s.Deny
	default:
		s.renderEnter(w, r, http.StatusBadRequest, code, "Choose whether to allow or deny the device.")
		return
	}

	err := answer(r.Context(), code)

	var vErr *validation.ValidationError
	switch {
	case err == nil && r.PostFormValue("decision") == decisionApprove:
		s.renderResult(w, http.StatusOK, templates.ResultData{
			Title:   "Device connected",
			Message: "You can close this page and return to your device.",
		})
	case err == nil:
		s.renderResult(w, http.StatusOK, templates.ResultData{
			Title:   "Access denied",
			Message: "The device was not connected to your account.",
		})
	case errors.As(err, &vErr):
		s.renderEnter(w, r, http.StatusBadRequest, code, "That is not a valid code: "+vErr.Message+".")
	case errors.Is(err, ErrCodeNotFound):
		s.renderEnter(w, r, http.StatusNotFound, code, "That code is unknown or has expired.")
	case errors.Is(err, ErrCodeAnswered):
		s.renderResult(w, http.StatusConflict, templates.ResultData{
			Title:   "Code already used",
			Message: "This code was already answered. Request a new one on your device.",
			Back:    s.EnterPath(),
		})
	default:
		s.logger.Error().Err(err).Msg("answering shortcode")
		s.renderResult(w, http.StatusInternalServerError, templates.ResultData{
			Title:   "Something went wrong",
			Message: "Please try again in a moment.",
			Back:    s.EnterPath(),
		})
	}
}

func (s *Server) renderEnter(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	token, err := s.csrf.GenerateToken(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("generating csrf token")
		s.renderResult(w, http.StatusServiceUnavailable, templates.ResultData{
			Title:   "Something went wrong",
			Message: "Please try again in a moment.",
		})
		return
	}

	setHTMLHeaders(w)
	w.WriteHeader(status)
	err = s.pages.RenderEnter(w, templates.EnterData{
		Action:    s.EnterPath(),
		Code:      validation.NormalizeCode(code),
		CSRFToken: token,
		Error:     message,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("rendering enter page")
	}
}

func (s *Server) renderResult(w http.ResponseWriter, status int, data templates.ResultData) {
	setHTMLHeaders(w)
	w.WriteHeader(status)
	if err := s.pages.RenderResult(w, data); err != nil {
		s.logger.Error().Err(err).Msg("rendering result page")
	}
}
