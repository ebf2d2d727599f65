package actions

import (
	"sync"
	"time"
)

// UserState is the identity provider's view of an authenticated user.
type UserState struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// PendingCredentialUser is a just created (or just signed in) account whose
// email is not verified yet. It only lives inside a Session.
type PendingCredentialUser struct {
	UID           string
	Email         string
	DisplayName   string
	IDToken       string
	EmailVerified bool
	CreatedAt     time.Time
}

// Session carries the current authenticated identity for one UI session.
// Controllers receive it explicitly instead of reading a global handle.
type Session struct {
	mu      sync.RWMutex
	current *UserState
	pending *PendingCredentialUser
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// NewPendingSession returns a session holding an unverified user.
func NewPendingSession(user *PendingCredentialUser) *Session {
	s := &Session{}
	s.SetPendingUser(user)
	return s
}

// CurrentUser returns a copy of the current user, if any.
func (s *Session) CurrentUser() (UserState, bool) {
	if s == nil {
		return UserState{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return UserState{}, false
	}
	return *s.current, true
}

// SetCurrentUser replaces the current user.
func (s *Session) SetCurrentUser(user UserState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &user
}

// PendingUser returns the unverified user held by the session.
func (s *Session) PendingUser() *PendingCredentialUser {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// SetPendingUser stores an unverified user and makes it the current user.
func (s *Session) SetPendingUser(user *PendingCredentialUser) {
	if user == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = user
	s.current = &UserState{
		UID:           user.UID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		EmailVerified: user.EmailVerified,
	}
}

// MarkVerified flags the current user as verified and drops the pending
// handle, since it is no longer needed.
func (s *Session) MarkVerified() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.EmailVerified = true
	}
	s.pending = nil
}

// End discards everything held by the session.
func (s *Session) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.pending = nil
}
