// Package session tracks whether a user is signed in, and as whom.
package session

import (
	"slices"
	"strings"
	"sync"
)

// Session holds the signed-in account. The zero value is signed out.
type Session struct {
	mu        sync.RWMutex
	uid       string
	listeners []func(uid string)
}

func New(uid string) *Session {
	return &Session{uid: strings.TrimSpace(uid)}
}

// UID returns the signed-in uid, and false when signed out
func (s *Session) UID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uid, s.uid != ""
}

// SignIn switches the active identity. Listeners run only when it changes.
func (s *Session) SignIn(uid string) {
	s.set(strings.TrimSpace(uid))
}

func (s *Session) SignOut() {
	s.set("")
}

// OnChange registers fn to run after every identity change, with the new uid
// ("" when signed out).
func (s *Session) OnChange(fn func(uid string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) set(uid string) {
	s.mu.Lock()
	if s.uid == uid {
		s.mu.Unlock()
		return
	}
	s.uid = uid
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(uid)
	}
}
