package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Response modes accepted by /authorize.
const (
	ResponseModeQuery      = "query"
	ResponseModeWebMessage = "web_message"
)

// App bundles runtime dependencies for the simulated provider.
type App struct {
	Config   Config
	Logger   *slog.Logger
	Store    *InMemoryStore
	Sessions *SessionManager
	Tokens   *TokenFactory
	Key      *SigningKey
}

// NewApp wires together the application state from configuration. Rules are
// registered at wiring time and run in the order given on every user-grant
// token issuance.
func NewApp(cfg Config, logger *slog.Logger, rules ...Rule) (*App, error) {
	key, err := LoadDevSigningKey()
	if err != nil {
		return nil, err
	}

	store := NewInMemoryStore(cfg.Auth.SeedUsers())
	sessions := NewSessionManager(cfg, store)
	tokens := NewTokenFactory(cfg, store, key, logger, rules)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Sessions: sessions,
		Tokens:   tokens,
		Key:      key,
	}, nil
}

// serviceURL reconstructs the request's own base URL with a trailing slash;
// it becomes the token issuer so the simulator works behind any host name.
func serviceURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/"
}

func (a *App) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"ok": true})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleAuthorize is the state machine entry. It dispatches on response_mode:
// the query mode redirects to the hosted login page preserving every query
// parameter, the web_message mode answers out of the existing session without
// a redirect.
func (a *App) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var sess BrowserSession
	haveSession := false
	if currentUser := q.Get("currentUser"); currentUser != "" {
		// Silent login: fake an existing IdP session for the user
		// without credential validation. The cookie set by Put lands
		// on the response, so the session is carried forward directly.
		sess = a.Sessions.Put(w, r, currentUser)
		haveSession = true
	}

	responseMode := q.Get("response_mode")
	if responseMode == "" {
		responseMode = ResponseModeQuery
	}
	assert(responseMode == ResponseModeQuery || responseMode == ResponseModeWebMessage,
		fmt.Sprintf("unknown response_mode %s", responseMode))

	switch responseMode {
	case ResponseModeQuery:
		http.Redirect(w, r, "/login?"+r.URL.RawQuery, http.StatusFound)
	case ResponseModeWebMessage:
		if !haveSession {
			sess, haveSession = a.Sessions.Fetch(r)
		}
		a.renderWebMessage(w, q, sess, haveSession)
	}
}

// renderWebMessage issues a code from the active session and posts it to the
// opener window instead of redirecting.
func (a *App) renderWebMessage(w http.ResponseWriter, q url.Values, sess BrowserSession, ok bool) {
	assert(ok && sess.Username != "", "no session")

	code := EncodeAuthCode(q.Get("nonce"), sess.Username)
	html, err := renderTemplate(webMessageTemplate, map[string]string{
		"Code":   code,
		"State":  q.Get("state"),
		"Origin": originOf(q.Get("redirect_uri")),
	})
	if err != nil {
		a.Logger.Error("render web_message", "error", err)
		writePlainError(w, http.StatusInternalServerError, "render failure")
		return
	}
	writeHTML(w, http.StatusOK, html)
}

// handleLogin renders the hosted login form seeded with the resolved client
// and audience.
func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a.renderLogin(w, r, q, false, http.StatusOK)
}

func (a *App) renderLogin(w http.ResponseWriter, r *http.Request, params url.Values, loginFailed bool, status int) {
	clientID := params.Get("client_id")
	if clientID == "" {
		clientID = a.Config.Auth.ClientID
	}
	audience := params.Get("audience")
	if audience == "" {
		audience = a.Config.Auth.Audience
	}
	assert(clientID != "", "no clientID assigned")

	html, err := renderTemplate(loginTemplate, loginView{
		Domain:      r.Host,
		ClientID:    clientID,
		Audience:    audience,
		Scope:       a.Config.Auth.Scope,
		RedirectURI: params.Get("redirect_uri"),
		State:       params.Get("state"),
		Nonce:       params.Get("nonce"),
		LoginFailed: loginFailed,
	})
	if err != nil {
		a.Logger.Error("render login", "error", err)
		writePlainError(w, http.StatusInternalServerError, "render failure")
		return
	}
	writeHTML(w, status, html)
}

// handleUsernamePasswordLogin validates credentials against the directory.
// Success persists the session under the login nonce and returns the
// auto-submitting continuation form; failure re-renders the login page with
// HTTP 400.
func (a *App) handleUsernamePasswordLogin(w http.ResponseWriter, r *http.Request) {
	body := parseBody(r)

	username := bodyString(body, "username")
	nonce := bodyString(body, "nonce")
	password := bodyString(body, "password")

	assert(username != "", "no username in /usernamepassword/login")
	assert(nonce != "", "no nonce in /usernamepassword/login")

	if _, ok := a.Store.UserByCredentials(username, password); !ok {
		// The client and audience travel on the query string; the hosted
		// form also posts them as hidden fields. Query wins when both
		// are present.
		params := bodyValues(body)
		q := r.URL.Query()
		for _, key := range []string{"client_id", "audience"} {
			if v := q.Get(key); v != "" {
				params.Set(key, v)
			}
		}
		a.renderLogin(w, r, params, true, http.StatusBadRequest)
		return
	}

	a.Sessions.Put(w, r, username)
	a.Store.SaveAuthSession(AuthSession{Username: username, Nonce: nonce})

	wctx, err := json.Marshal(body)
	if err != nil {
		a.Logger.Error("marshal wctx", "error", err)
		writePlainError(w, http.StatusInternalServerError, "marshal failure")
		return
	}
	html, err := renderTemplate(usernamePasswordFormTemplate, map[string]string{"Wctx": string(wctx)})
	if err != nil {
		a.Logger.Error("render continuation form", "error", err)
		writePlainError(w, http.StatusInternalServerError, "render failure")
		return
	}
	writeHTML(w, http.StatusOK, html)
}

// handleLoginCallback exchanges the nonce-keyed session for an authorization
// code and redirects back to the application. A missing session still issues
// a code with an empty username; redemption fails later at token exchange.
func (a *App) handleLoginCallback(w http.ResponseWriter, r *http.Request) {
	assert(r.ParseForm() == nil, "malformed form body in /login/callback")
	raw := r.PostFormValue("wctx")
	assert(raw != "", "no wctx in /login/callback")

	var wctx map[string]any
	assert(json.Unmarshal([]byte(raw), &wctx) == nil, "malformed wctx in /login/callback")

	redirectURI := bodyString(wctx, "redirect_uri")
	nonce := bodyString(wctx, "nonce")

	var username string
	if sess, ok := a.Store.AuthSession(nonce); ok {
		username = sess.Username
	}

	code := EncodeAuthCode(nonce, username)

	values := bodyValues(wctx)
	values.Set("code", code)
	http.Redirect(w, r, redirectURI+"?"+values.Encode(), http.StatusFound)
}

// handleOAuthToken exchanges a code, refresh token, password, or client
// credentials for a signed token set.
func (a *App) handleOAuthToken(w http.ResponseWriter, r *http.Request) {
	body := parseBody(r)

	clientID := bodyString(body, "client_id")
	if clientID == "" {
		clientID = a.Config.Auth.ClientID
	}
	audience := bodyString(body, "audience")
	if audience == "" {
		audience = a.Config.Auth.Audience
	}
	assert(clientID != "", "500::no clientID in options or request body")

	set, err := a.Tokens.TokenSet(r.Context(), TokenRequest{
		Body:     body,
		Issuer:   serviceURL(r),
		ClientID: clientID,
		Audience: audience,
	})
	if err != nil {
		a.writeTokenError(w, r, err)
		return
	}

	writeJSON(w, set)
}

// writeTokenError maps token issuance failures: explicit statuses (the fixed
// 401 Unauthorized, unsupported grants) keep theirs, everything else,
// including the literal scope-resolution diagnostics and rule failures, is a
// terminal 500 with the error text as the plain body.
func (a *App) writeTokenError(w http.ResponseWriter, r *http.Request, err error) {
	var he httpError
	if errors.As(err, &he) {
		a.Logger.Warn("token request rejected", "path", r.URL.Path, "status", he.status, "error", he.body)
		writePlainError(w, he.status, he.body)
		return
	}
	a.Logger.Warn("token request failed", "path", r.URL.Path, "error", err)
	writePlainError(w, http.StatusInternalServerError, err.Error())
}

// handleUserInfo decodes the bearer token without signature verification and
// resolves the subject against the directory.
func (a *App) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	var token string
	if header := r.Header.Get("Authorization"); header != "" {
		_, token, _ = strings.Cut(header, " ")
	} else {
		token = r.URL.Query().Get("access_token")
	}
	assert(token != "", "no authorization header or access_token")

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	assert(err == nil, "undecodable access token")
	sub, _ := claims["sub"].(string)

	user, ok := a.Store.FindUser(func(u User) bool {
		assert(u.ID != "", "no id defined on user")
		return u.ID == sub
	})
	assert(ok, "no user in /userinfo")

	writeJSON(w, map[string]any{
		"sub":            sub,
		"name":           user.Name,
		"given_name":     user.Name,
		"family_name":    user.Name,
		"email":          user.Email,
		"email_verified": true,
		"locale":         "en",
		"hd":             "okta.com",
	})
}

// handleLogout clears the browser session and bounces back to the caller.
func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	a.Sessions.Clear(w, r)

	returnTo := r.URL.Query().Get("returnTo")
	if returnTo == "" {
		returnTo = r.Header.Get("Referer")
	}
	assert(returnTo != "", "no logical returnTo url")

	http.Redirect(w, r, returnTo, http.StatusFound)
}

// handlePasswordlessStart validates the request shape and answers with a
// fixed mock payload; no OTP is dispatched.
func (a *App) handlePasswordlessStart(w http.ResponseWriter, r *http.Request) {
	body := parseBody(r)

	clientID := bodyString(body, "client_id")
	connection := bodyString(body, "connection")
	email := bodyString(body, "email")
	phoneNumber := bodyString(body, "phone_number")

	if clientID == "" {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "client_id is required"})
		return
	}
	if connection != "email" && connection != "sms" {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "connection must be 'email' or 'sms'"})
		return
	}
	if connection == "email" && email == "" {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "email is required when connection is 'email'"})
		return
	}
	if connection == "sms" && phoneNumber == "" {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "phone_number is required when connection is 'sms'"})
		return
	}

	if connection == "email" {
		writeJSON(w, map[string]any{
			"_id":            "000000000000000000000000",
			"email":          email,
			"email_verified": false,
		})
		return
	}
	writeJSON(w, map[string]any{
		"_id":            "000000000000000000000000",
		"phone_number":   phoneNumber,
		"phone_verified": false,
	})
}

// parseBody decodes a request body as JSON or form data depending on the
// Content-Type, returning a uniform map. Clients of the simulated provider
// use both encodings interchangeably.
func parseBody(r *http.Request) map[string]any {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		body := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return map[string]any{}
		}
		return body
	}

	if err := r.ParseForm(); err != nil {
		return map[string]any{}
	}
	body := make(map[string]any, len(r.PostForm))
	for key := range r.PostForm {
		body[key] = r.PostForm.Get(key)
	}
	return body
}

// bodyValues flattens a decoded body back into url.Values for redirects and
// form re-renders.
func bodyValues(body map[string]any) url.Values {
	values := url.Values{}
	for k, v := range body {
		if s, ok := v.(string); ok {
			values.Set(k, s)
			continue
		}
		values.Set(k, fmt.Sprintf("%v", v))
	}
	return values
}

// originOf reduces a URL to its origin for postMessage targeting.
func originOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "*"
	}
	return u.Scheme + "://" + u.Host
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeHTML(w http.ResponseWriter, status int, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}

// writePlainError writes a plain-text error body verbatim; the literal
// diagnostics of the simulated API are part of its contract, so no trailing
// newline is added.
func writePlainError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
