package shortcode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// State is the status of a shortcode grant
type State int

const (
	// StateUnknown means no outcome was determined
	StateUnknown State = iota
	// StateWaiting means the user has not entered the code yet
	StateWaiting
	// StateAccepted means the user granted access and tokens were issued
	StateAccepted
	// StateDenied means the user refused access
	StateDenied
	// StateExpired means the code can no longer be used
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateAccepted:
		return "accepted"
	case StateDenied:
		return "denied"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// terminal reports whether no further polling can change s
func (s State) terminal() bool {
	return s == StateAccepted || s == StateDenied || s == StateExpired
}

// PollResult is the outcome of one Poll. Tokens is set only when State is
// StateAccepted.
type PollResult struct {
	State  State
	Tokens *TokenSet
}

// Shortcode is a single in-flight grant request
type Shortcode struct {
	code      string
	handle    string
	expiresIn time.Duration
	expiresAt time.Time
	creds     credentials

	// turn admits one poll at a time; state and tokens change only while
	// it is held
	turn   chan struct{}
	state  State
	tokens *TokenSet
}

func newShortcode(creds credentials, res shortcodeResponse) *Shortcode {
	expiresIn := time.Duration(res.ExpiresIn) * time.Second
	return &Shortcode{
		code:      res.Code,
		handle:    res.Handle,
		expiresIn: expiresIn,
		expiresAt: creds.now().Add(expiresIn),
		creds:     creds,
		turn:      make(chan struct{}, 1),
		state:     StateWaiting,
	}
}

// acquire waits for the poll turn or for ctx to be done
func (s *Shortcode) acquire(ctx context.Context) error {
	select {
	case s.turn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Shortcode) release() {
	<-s.turn
}

// Code returns the code to show to the user
func (s *Shortcode) Code() string {
	return s.code
}

// Handle returns the opaque identifier used for polling
func (s *Shortcode) Handle() string {
	return s.handle
}

// ExpiresIn returns the lifetime the server gave the code
func (s *Shortcode) ExpiresIn() time.Duration {
	return s.expiresIn
}

// ExpiresAt returns the time at which the code expires
func (s *Shortcode) ExpiresAt() time.Time {
	return s.expiresAt
}

// Expired reports whether the code is past its local expiry
func (s *Shortcode) Expired() bool {
	return !s.creds.now().Before(s.expiresAt)
}

// Poll checks once whether the user has answered. Accepted codes are
// exchanged for tokens right away. Denied and expired outcomes are returned
// together with ErrAccessDenied and ErrShortCodeExpired. Once an outcome is
// terminal, later calls repeat it without contacting the server.
func (s *Shortcode) Poll(ctx context.Context) (PollResult, error) {
	if err := s.acquire(ctx); err != nil {
		return PollResult{}, err
	}
	defer s.release()

	if s.state.terminal() {
		return s.outcome()
	}
	if s.Expired() {
		s.state = StateExpired
		return s.outcome()
	}

	res, err := s.creds.transport.Do(ctx, http.MethodGet, checkPath+url.PathEscape(s.handle), nil)
	if err != nil {
		return PollResult{}, transportError(ctx, "checking shortcode", err)
	}

	switch res.StatusCode {
	case http.StatusOK:
		var body checkResponse
		if err := res.Decode(&body); err != nil {
			return PollResult{}, fmt.Errorf("decoding shortcode check response: %w", err)
		}
		tokens, err := s.exchange(ctx, body.Code)
		if err != nil {
			return PollResult{}, err
		}
		s.state, s.tokens = StateAccepted, tokens
	case http.StatusNoContent:
		return PollResult{State: StateWaiting}, nil
	case http.StatusForbidden:
		s.state = StateDenied
	case http.StatusNotFound:
		s.state = StateExpired
	default:
		return PollResult{}, newUnexpectedHTTPError(res)
	}

	return s.outcome()
}

// outcome reports the terminal state. Callers hold the poll turn.
func (s *Shortcode) outcome() (PollResult, error) {
	switch s.state {
	case StateDenied:
		return PollResult{State: StateDenied}, ErrAccessDenied
	case StateExpired:
		return PollResult{State: StateExpired}, ErrShortCodeExpired
	default:
		return PollResult{State: s.state, Tokens: s.tokens}, nil
	}
}

// exchange trades the authorization code for tokens carrying the requested scopes
func (s *Shortcode) exchange(ctx context.Context, code string) (*TokenSet, error) {
	return s.creds.tokens(ctx, tokenRequest{
		GrantType:    grantTypeAuthorizationCode,
		Code:         code,
		ClientID:     s.creds.clientID,
		ClientSecret: s.creds.clientSecret,
	}, s.creds.scopes)
}

// Wait polls until the user answers. It returns the tokens on acceptance,
// ErrAccessDenied on denial and ErrShortCodeExpired when the code expires,
// locally or according to the server. Between checks it sleeps for the poll
// interval, or until the code expires if that comes first. If ctx is done
// first, ctx.Err() is returned.
func (s *Shortcode) Wait(ctx context.Context) (*TokenSet, error) {
	for {
		res, err := s.Poll(ctx)
		if err != nil {
			return nil, err
		}
		if res.State == StateAccepted {
			return res.Tokens, nil
		}

		delay := s.creds.pollInterval
		remaining := s.expiresAt.Sub(s.creds.now())
		expiring := remaining <= delay
		if expiring {
			delay = remaining
		}

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}

		if expiring {
			if err := s.acquire(ctx); err != nil {
				return nil, err
			}
			if !s.state.terminal() {
				s.state = StateExpired
			}
			res, err := s.outcome()
			s.release()
			if err != nil {
				return nil, err
			}
			return res.Tokens, nil
		}
	}
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
