package server

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps the user directory and session state for the simulated
// provider. All state is process-local; per-key writes are atomic under the
// lock, which is the only cross-request coordination the simulator needs.
type InMemoryStore struct {
	mu           sync.RWMutex
	users        map[string]User
	userOrder    []string
	authSessions map[string]AuthSession
	browser      map[string]BrowserSession
}

// NewInMemoryStore seeds the user directory. Users without an id get a
// generated one; iteration order over users is the seed order, so predicate
// lookups are deterministic.
func NewInMemoryStore(seed []User) *InMemoryStore {
	s := &InMemoryStore{
		users:        make(map[string]User, len(seed)),
		authSessions: make(map[string]AuthSession),
		browser:      make(map[string]BrowserSession),
	}
	for _, u := range seed {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		s.users[u.ID] = u
		s.userOrder = append(s.userOrder, u.ID)
	}
	return s
}

// NewID generates a random identifier for cookie sessions.
func (s *InMemoryStore) NewID() string {
	return uuid.NewString()
}

// Users returns the directory in seed order.
func (s *InMemoryStore) Users() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.userOrder))
	for _, id := range s.userOrder {
		out = append(out, s.users[id])
	}
	return out
}

// FindUser returns the first user, in seed order, matching the predicate.
func (s *InMemoryStore) FindUser(pred func(User) bool) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.userOrder {
		if u := s.users[id]; pred(u) {
			return u, true
		}
	}
	return User{}, false
}

// UserByID looks a user up by generated id.
func (s *InMemoryStore) UserByID(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// UserByCredentials matches email case-insensitively and the password
// exactly.
func (s *InMemoryStore) UserByCredentials(username, password string) (User, bool) {
	return s.FindUser(func(u User) bool {
		return strings.EqualFold(u.Email, username) && u.Password == password
	})
}

// SaveAuthSession upserts the session for its nonce.
func (s *InMemoryStore) SaveAuthSession(sess AuthSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authSessions[sess.Nonce] = sess
}

// AuthSession retrieves a session by nonce.
func (s *InMemoryStore) AuthSession(nonce string) (AuthSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.authSessions[nonce]
	return sess, ok
}

// SaveBrowserSession stores or replaces a cookie-backed session.
func (s *InMemoryStore) SaveBrowserSession(sess BrowserSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.browser[sess.ID] = sess
}

// BrowserSession retrieves a cookie-backed session by id.
func (s *InMemoryStore) BrowserSession(id string) (BrowserSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.browser[id]
	return sess, ok
}

// DeleteBrowserSession removes a cookie-backed session.
func (s *InMemoryStore) DeleteBrowserSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.browser, id)
}
