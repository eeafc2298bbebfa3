package mockserver

import (
	"sync"
	"time"
)

// grantState tracks the user's answer for one shortcode
type grantState int

const (
	statePending grantState = iota
	stateApproved
	stateDenied
)

// grant is one issued shortcode
type grant struct {
	handle    string
	code      string
	clientID  string
	scope     string
	expiresAt time.Time
	state     grantState

	// authCode is set on approval and redeemable once at the token endpoint
	authCode string
}

// session is what a refresh token stands for
type session struct {
	clientID string
	scope    string
}

// memoryStore holds grants and refresh tokens. It is safe for concurrent use.
type memoryStore struct {
	mu        sync.Mutex
	byHandle  map[string]*grant
	byCode    map[string]*grant
	authCodes map[string]*grant
	refresh   map[string]session
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		byHandle:  make(map[string]*grant),
		byCode:    make(map[string]*grant),
		authCodes: make(map[string]*grant),
		refresh:   make(map[string]session),
	}
}

// add stores g unless its code is already live; it reports whether g was stored
func (s *memoryStore) add(g *grant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byCode[g.code]; taken {
		return false
	}
	s.byHandle[g.handle] = g
	s.byCode[g.code] = g
	return true
}

// check returns a copy of the grant behind handle. Expired grants are
// dropped and reported as missing. An approved grant is handed out once:
// the handle is forgotten so later checks miss.
func (s *memoryStore) check(handle string, now time.Time) (grant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byHandle[handle]
	if !ok {
		return grant{}, false
	}
	if !now.Before(g.expiresAt) {
		s.removeLocked(g)
		return grant{}, false
	}
	if g.state == stateApproved {
		delete(s.byHandle, g.handle)
		delete(s.byCode, g.code)
	}
	return *g, true
}

// answer records the user's decision for code. authCode is stored when approving.
func (s *memoryStore) answer(code string, state grantState, authCode string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.byCode[code]
	if !ok {
		return ErrCodeNotFound
	}
	if !now.Before(g.expiresAt) {
		s.removeLocked(g)
		return ErrCodeNotFound
	}
	if g.state != statePending {
		return ErrCodeAnswered
	}

	g.state = state
	if state == stateApproved {
		g.authCode = authCode
		s.authCodes[authCode] = g
	}
	return nil
}

// redeemAuthCode consumes an authorization code
func (s *memoryStore) redeemAuthCode(code string, now time.Time) (grant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.authCodes[code]
	if !ok {
		return grant{}, false
	}
	delete(s.authCodes, code)
	if !now.Before(g.expiresAt) {
		return grant{}, false
	}
	return *g, true
}

func (s *memoryStore) saveRefresh(token string, sess session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[token] = sess
}

// redeemRefresh consumes a refresh token
func (s *memoryStore) redeemRefresh(token string) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.refresh[token]
	if ok {
		delete(s.refresh, token)
	}
	return sess, ok
}

// sweep drops every grant that expired before now
func (s *memoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.byHandle {
		if !now.Before(g.expiresAt) {
			s.removeLocked(g)
		}
	}
	for code, g := range s.authCodes {
		if !now.Before(g.expiresAt) {
			delete(s.authCodes, code)
		}
	}
}

// pending returns the number of live grants
func (s *memoryStore) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHandle)
}

func (s *memoryStore) removeLocked(g *grant) {
	delete(s.byHandle, g.handle)
	delete(s.byCode, g.code)
	if g.authCode != "" {
		delete(s.authCodes, g.authCode)
	}
}
