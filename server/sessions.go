package server

import (
	"net/http"
)

const sessionCookieName = "authsim_session"

// SessionManager handles the cookie-backed browser session that carries the
// logged-in username between the login steps. The cookie holds a random id;
// the session data lives in the store. Sessions last for the process
// lifetime unless cleared by logout.
type SessionManager struct {
	store        *InMemoryStore
	cookieDomain string
	secure       bool
}

// NewSessionManager constructs a session manager honouring config.
func NewSessionManager(cfg Config, store *InMemoryStore) *SessionManager {
	return &SessionManager{
		store:        store,
		cookieDomain: cfg.Server.CookieDomain,
		secure:       !cfg.Server.DevMode,
	}
}

// Fetch returns the session associated with the request cookie if present.
func (sm *SessionManager) Fetch(r *http.Request) (BrowserSession, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return BrowserSession{}, false
	}
	return sm.store.BrowserSession(cookie.Value)
}

// Put upserts the username on the request's session, establishing a session
// and setting the cookie when none exists yet.
func (sm *SessionManager) Put(w http.ResponseWriter, r *http.Request, username string) BrowserSession {
	sess, ok := sm.Fetch(r)
	if !ok {
		sess = BrowserSession{ID: sm.store.NewID()}
		http.SetCookie(w, sm.cookie(sess.ID, 0))
	}
	sess.Username = username
	sm.store.SaveBrowserSession(sess)
	return sess
}

// Clear removes the session and expires the cookie for logout.
func (sm *SessionManager) Clear(w http.ResponseWriter, r *http.Request) {
	if sess, ok := sm.Fetch(r); ok {
		sm.store.DeleteBrowserSession(sess.ID)
	}
	http.SetCookie(w, sm.cookie("", -1))
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   sm.cookieDomain,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
