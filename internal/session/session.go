// Package session implements the Session Layer (spec §4.6): one logical
// session per connection, tracked so that disconnects can reconcile online
// flags, room membership, and ownership transfer. A Session is an internal
// weak reference (spec §3 "Ownership model"): it never owns a Room or
// Account, only holds the username key used to look one up.
package session

import (
	"sync"

	"github.com/google/uuid"

	"lobbyplatform/internal/catalog"
)

// Session is bound 1-1 to an accepted socket (spec §4.6). The internal id
// is opaque bookkeeping; username is what the rest of the system keys on
// once LOGIN succeeds.
type Session struct {
	ID string

	mu       sync.Mutex
	username string
	role     catalog.Role
	loggedIn bool
}

// New creates a fresh, not-yet-authenticated session for an accepted
// connection.
func New() *Session {
	return &Session{ID: uuid.NewString()}
}

// Bind associates a logged-in username with this session, called by the
// LOGIN handler on success (spec §4.6: "the lobby associates a logged-in
// username with that session upon successful LOGIN").
func (s *Session) Bind(username string, role catalog.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.role = role
	s.loggedIn = true
}

// Unbind marks the session as no longer logged in, keeping the last
// username. It is called by the LOGOUT handlers and as the final step of
// disconnect reconciliation.
func (s *Session) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedIn = false
}

// User returns the bound username and role, and whether the session is
// currently logged in.
func (s *Session) User() (username string, role catalog.Role, loggedIn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, s.role, s.loggedIn
}
