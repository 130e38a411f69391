package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionSignInOut(t *testing.T) {
	s := New("")
	_, ok := s.UID()
	assert.False(t, ok)

	var seen []string
	s.OnChange(func(uid string) { seen = append(seen, uid) })

	s.SignIn(" alice ")
	uid, ok := s.UID()
	assert.True(t, ok)
	assert.Equal(t, "alice", uid)

	s.SignIn("alice") // unchanged, no notification
	s.SignOut()

	assert.Equal(t, []string{"alice", ""}, seen)
}

func TestListenersRunOnSnapshot(t *testing.T) {
	s := New("")

	var late []string
	registered := false
	s.OnChange(func(uid string) {
		if !registered {
			registered = true
			s.OnChange(func(uid string) { late = append(late, uid) })
		}
	})

	s.SignIn("alice")
	assert.Empty(t, late, "listener added during a notification waits for the next change")

	s.SignIn("bob")
	assert.Equal(t, []string{"bob"}, late)
}
