// Package auth is the Auth collaborator: it answers "who is the current
// user" and signals when that session ends. Login itself is delegated to the
// hosted auth service; this package only verifies the tokens it issues.
package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Identity is the signed-in user as reported by the auth service.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Token string `json:"-"` // access token, forwarded to the Row Store
}

var ErrNoSession = errors.New("no active session")

// Verifier turns an access token into an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Session holds the current identity. The zero value has no user.
type Session struct {
	mu   sync.RWMutex
	user *Identity
	done chan struct{}
}

// NewSession returns a session already signed in as id.
func NewSession(id Identity) *Session {
	s := &Session{}
	s.Begin(id)
	return s
}

// Begin signs in as id, ending any previous session first.
func (s *Session) Begin(id Identity) {
	s.End()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &id
	s.done = make(chan struct{})
}

// CurrentUser returns the signed-in identity, if any.
func (s *Session) CurrentUser() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return Identity{}, false
	}
	return *s.user, true
}

// Done is closed when the current session ends. With no session it
// returns an already closed channel.
func (s *Session) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// End signs out. Safe to call with no session.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return
	}
	s.user = nil
	close(s.done)
	s.done = nil
}

// Login verifies token and begins a session for the resulting identity.
func (s *Session) Login(ctx context.Context, v Verifier, token string) (Identity, error) {
	id, err := v.Verify(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	id.Token = token
	s.Begin(id)
	return id, nil
}

// BearerToken extracts the token of a "Bearer <token>" header value.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
