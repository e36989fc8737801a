package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, mutate func(*Config), rules ...Rule) (*httptest.Server, *App) {
	t.Helper()
	app := newTestApp(t, mutate, rules...)
	srv := httptest.NewServer(app.Routes())
	t.Cleanup(srv.Close)
	return srv, app
}

// noRedirectClient keeps cookies but returns redirect responses to the test
// instead of following them.
func noRedirectClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func postForm(t *testing.T, client *http.Client, url string, values url.Values) *http.Response {
	t.Helper()
	resp, err := client.PostForm(url, values)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func postJSON(t *testing.T, client *http.Client, url string, payload any) *http.Response {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := client.Post(url, "application/json", strings.NewReader(string(b)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestHeartbeatAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/heartbeat")
	if err != nil {
		t.Fatalf("GET /heartbeat: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("heartbeat status = %d", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, `"ok":true`) {
		t.Fatalf("unexpected heartbeat body: %s", body)
	}

	resp, err = client.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	if body := readBody(t, resp); !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("unexpected health body: %s", body)
	}
}

func TestAuthorizeQueryRedirectsToLogin(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	query := "client_id=client-one&redirect_uri=" + url.QueryEscape("http://app.test/cb") + "&state=xyz&nonce=n1"
	resp, err := client.Get(srv.URL + "/authorize?" + query)
	if err != nil {
		t.Fatalf("GET /authorize: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc != "/login?"+query {
		t.Fatalf("Location = %q", loc)
	}
}

func TestAuthorizeUnknownResponseMode(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/authorize?response_mode=banana")
	if err != nil {
		t.Fatalf("GET /authorize: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "Assert condition failed: unknown response_mode banana" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestAuthorizeWebMessageWithoutSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/authorize?response_mode=web_message")
	if err != nil {
		t.Fatalf("GET /authorize: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "Assert condition failed: no session" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestAuthorizeWebMessageSilentLogin(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	q := url.Values{}
	q.Set("response_mode", "web_message")
	q.Set("currentUser", DefaultUser.Email)
	q.Set("nonce", "n1")
	q.Set("state", "s1")
	q.Set("redirect_uri", "http://app.test/cb")

	resp, err := client.Get(srv.URL + "/authorize?" + q.Encode())
	if err != nil {
		t.Fatalf("GET /authorize: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := readBody(t, resp)

	code := EncodeAuthCode("n1", DefaultUser.Email)
	if !strings.Contains(body, code) {
		t.Fatalf("response does not embed authorization code: %s", body)
	}
	if !strings.Contains(body, "http://app.test") {
		t.Fatalf("response does not target the redirect origin: %s", body)
	}
	if !strings.Contains(body, "authorization_response") {
		t.Fatalf("response is not a web_message document: %s", body)
	}

	// The silent login establishes a session, so a second call without
	// currentUser still succeeds.
	resp, err = client.Get(srv.URL + "/authorize?response_mode=web_message&nonce=n2")
	if err != nil {
		t.Fatalf("second GET /authorize: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second call status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginPageRendersResolvedClient(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/login?client_id=client-one&audience=https://example.nl&state=s1&nonce=n1&redirect_uri=http://app.test/cb")
	if err != nil {
		t.Fatalf("GET /login: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := readBody(t, resp)
	for _, want := range []string{
		`name="client_id" value="client-one"`,
		`name="audience" value="https://example.nl"`,
		`name="nonce" value="n1"`,
		`action="/usernamepassword/login"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("login page missing %q: %s", want, body)
		}
	}
	if strings.Contains(body, "Wrong email or password") {
		t.Fatal("fresh login page must not show the failure message")
	}
}

func TestLoginPageFallsBackToConfiguredClient(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/login")
	if err != nil {
		t.Fatalf("GET /login: %v", err)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, `value="`+DefaultClientID+`"`) {
		t.Fatalf("login page missing configured client id: %s", body)
	}
}

func TestUsernamePasswordLoginWrongPassword(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp := postForm(t, client, srv.URL+"/usernamepassword/login", url.Values{
		"username": {DefaultUser.Email},
		"password": {"nope"},
		"nonce":    {"n1"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, "Wrong email or password") {
		t.Fatalf("expected re-rendered login page: %s", body)
	}
}

func TestUsernamePasswordLoginFailureResolvesClientFromQuery(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp := postForm(t, client, srv.URL+"/usernamepassword/login?client_id=client-one&audience=https://example.nl", url.Values{
		"username": {DefaultUser.Email},
		"password": {"nope"},
		"nonce":    {"n1"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "Wrong email or password") {
		t.Fatalf("expected re-rendered login page: %s", body)
	}
	if !strings.Contains(body, `value="client-one"`) {
		t.Fatalf("login page does not carry the query client_id: %s", body)
	}
	if !strings.Contains(body, `value="https://example.nl"`) {
		t.Fatalf("login page does not carry the query audience: %s", body)
	}
}

func TestUsernamePasswordLoginMissingFields(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp := postForm(t, client, srv.URL+"/usernamepassword/login", url.Values{
		"password": {"12345"},
		"nonce":    {"n1"},
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "Assert condition failed: no username in /usernamepassword/login" {
		t.Fatalf("unexpected body: %q", body)
	}

	resp = postForm(t, client, srv.URL+"/usernamepassword/login", url.Values{
		"username": {DefaultUser.Email},
		"password": {"12345"},
	})
	if body := readBody(t, resp); body != "Assert condition failed: no nonce in /usernamepassword/login" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestLoginCallbackRequiresWctx(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp := postForm(t, client, srv.URL+"/login/callback", url.Values{})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "Assert condition failed: no wctx in /login/callback" {
		t.Fatalf("unexpected body: %q", body)
	}

	resp = postForm(t, client, srv.URL+"/login/callback", url.Values{"wctx": {"{{{"}})
	if body := readBody(t, resp); body != "Assert condition failed: malformed wctx in /login/callback" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestFullAuthorizationCodeFlow(t *testing.T) {
	srv, app := newTestServer(t, nil)
	client := noRedirectClient(t)

	// Credentials post: persists the nonce-keyed session and returns the
	// auto-submitting continuation form.
	loginBody := url.Values{
		"username":     {DefaultUser.Email},
		"password":     {DefaultUser.Password},
		"nonce":        {"flow-nonce"},
		"state":        {"flow-state"},
		"client_id":    {"client-one"},
		"audience":     {"https://example.nl"},
		"redirect_uri": {"http://app.test/cb"},
	}
	resp := postForm(t, client, srv.URL+"/usernamepassword/login", loginBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	if body := readBody(t, resp); !strings.Contains(body, `action="/login/callback"`) {
		t.Fatalf("expected continuation form: %s", body)
	}

	// Callback: the embedded context comes back as wctx and is exchanged
	// for an authorization code appended to the redirect.
	wctx := map[string]any{}
	for k := range loginBody {
		wctx[k] = loginBody.Get(k)
	}
	raw, err := json.Marshal(wctx)
	if err != nil {
		t.Fatalf("marshal wctx: %v", err)
	}
	resp = postForm(t, client, srv.URL+"/login/callback", url.Values{"wctx": {string(raw)}})
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("callback status = %d, want 302", resp.StatusCode)
	}
	resp.Body.Close()

	loc, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	if loc.Scheme != "http" || loc.Host != "app.test" || loc.Path != "/cb" {
		t.Fatalf("unexpected redirect target: %s", loc)
	}
	if loc.Query().Get("state") != "flow-state" {
		t.Fatalf("state not preserved: %s", loc.RawQuery)
	}
	code := loc.Query().Get("code")
	if code == "" {
		t.Fatalf("no code on redirect: %s", loc.RawQuery)
	}
	if nonce, username, err := DecodeAuthCode(code); err != nil || nonce != "flow-nonce" || username != DefaultUser.Email {
		t.Fatalf("code payload = (%q, %q, %v)", nonce, username, err)
	}

	// Token exchange redeems the code for a signed token set.
	resp = postJSON(t, client, srv.URL+"/oauth/token", map[string]any{
		"grant_type": GrantAuthorizationCode,
		"code":       code,
		"client_id":  "client-one",
		"audience":   "https://example.nl",
		"nonce":      "flow-nonce",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	var set TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		t.Fatalf("decode token set: %v", err)
	}
	resp.Body.Close()

	if set.TokenType != "Bearer" || set.ExpiresIn != 86400 {
		t.Fatalf("unexpected token metadata: %+v", set)
	}

	claims := decodeToken(t, app, set.IDToken)
	if claims["email"] != DefaultUser.Email {
		t.Fatalf("email claim = %v", claims["email"])
	}
	if claims["nonce"] != "flow-nonce" {
		t.Fatalf("nonce claim = %v", claims["nonce"])
	}
	if claims["iss"] != srv.URL+"/" {
		t.Fatalf("iss claim = %v, want %s/", claims["iss"], srv.URL)
	}
}

func TestOAuthTokenClientCredentials(t *testing.T) {
	srv, app := newTestServer(t, func(cfg *Config) {
		cfg.Auth.ScopeRules = []ClientScopeRule{
			{ClientID: "client-three", Audience: "https://vip", Scope: "custom:special-access"},
		}
	})
	client := noRedirectClient(t)

	resp := postJSON(t, client, srv.URL+"/oauth/token", map[string]any{
		"grant_type": GrantClientCredentials,
		"client_id":  "client-three",
		"audience":   "https://vip",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	var set TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		t.Fatalf("decode token set: %v", err)
	}
	resp.Body.Close()

	if set.IDToken != "" || set.RefreshToken != "" {
		t.Fatalf("machine grant must not carry id or refresh tokens: %+v", set)
	}

	claims := decodeToken(t, app, set.AccessToken)
	if claims["scope"] != "custom:special-access" {
		t.Fatalf("scope claim = %v", claims["scope"])
	}
	if claims["sub"] != "client-three" {
		t.Fatalf("sub claim = %v", claims["sub"])
	}
	if claims["aud"] != "https://vip" {
		t.Fatalf("aud claim = %v", claims["aud"])
	}
}

func TestOAuthTokenClientCredentialsAudienceMismatchBody(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *Config) {
		cfg.Auth.ScopeRules = []ClientScopeRule{
			{ClientID: "client-three", Audience: "https://vip", Scope: "custom:special-access"},
		}
	})
	client := noRedirectClient(t)

	resp := postJSON(t, client, srv.URL+"/oauth/token", map[string]any{
		"grant_type": GrantClientCredentials,
		"client_id":  "client-three",
		"audience":   "https://other",
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	want := "Found application matching clientID, client-three, but incorrect audience, configured: https://vip :: passed: https://other"
	if body := readBody(t, resp); body != want {
		t.Fatalf("body = %q, want %q", body, want)
	}
}

func TestOAuthTokenUnknownUserUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp := postJSON(t, client, srv.URL+"/oauth/token", map[string]any{
		"grant_type": GrantAuthorizationCode,
		"code":       EncodeAuthCode("n1", "ghost@example.com"),
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "Unauthorized" {
		t.Fatalf("body = %q, want Unauthorized", body)
	}
}

func TestOAuthTokenFormEncoded(t *testing.T) {
	srv, app := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp := postForm(t, client, srv.URL+"/oauth/token", url.Values{
		"grant_type": {GrantPassword},
		"username":   {DefaultUser.Email},
		"password":   {DefaultUser.Password},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
	}
	var set TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		t.Fatalf("decode token set: %v", err)
	}
	resp.Body.Close()

	claims := decodeToken(t, app, set.IDToken)
	if claims["email"] != DefaultUser.Email {
		t.Fatalf("email claim = %v", claims["email"])
	}
}

func TestUserInfo(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp := postJSON(t, client, srv.URL+"/oauth/token", map[string]any{
		"grant_type": GrantPassword,
		"username":   DefaultUser.Email,
		"password":   DefaultUser.Password,
	})
	var set TokenSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		t.Fatalf("decode token set: %v", err)
	}
	resp.Body.Close()

	check := func(resp *http.Response) {
		t.Helper()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %s", resp.StatusCode, readBody(t, resp))
		}
		var info map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			t.Fatalf("decode userinfo: %v", err)
		}
		resp.Body.Close()
		if info["email"] != DefaultUser.Email {
			t.Fatalf("email = %v", info["email"])
		}
		if info["email_verified"] != true {
			t.Fatalf("email_verified = %v", info["email_verified"])
		}
		if info["locale"] != "en" || info["hd"] != "okta.com" {
			t.Fatalf("unexpected fixed fields: %v", info)
		}
		if info["sub"] == "" || info["sub"] == nil {
			t.Fatalf("sub missing: %v", info)
		}
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/userinfo", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+set.AccessToken)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET /userinfo: %v", err)
	}
	check(resp)

	resp, err = client.Get(srv.URL + "/userinfo?access_token=" + url.QueryEscape(set.AccessToken))
	if err != nil {
		t.Fatalf("GET /userinfo via query: %v", err)
	}
	check(resp)
}

func TestUserInfoMissingToken(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/userinfo")
	if err != nil {
		t.Fatalf("GET /userinfo: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "Assert condition failed: no authorization header or access_token" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestLogout(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/v2/logout?returnTo=" + url.QueryEscape("http://app.test/goodbye"))
	if err != nil {
		t.Fatalf("GET /v2/logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "http://app.test/goodbye" {
		t.Fatalf("Location = %q", loc)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v2/logout", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Referer", "http://app.test/home")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET /v2/logout with referer: %v", err)
	}
	resp.Body.Close()
	if loc := resp.Header.Get("Location"); loc != "http://app.test/home" {
		t.Fatalf("Location = %q", loc)
	}

	resp, err = client.Get(srv.URL + "/v2/logout")
	if err != nil {
		t.Fatalf("GET /v2/logout bare: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "Assert condition failed: no logical returnTo url" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestPasswordlessStart(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	cases := []struct {
		name       string
		payload    map[string]any
		wantStatus int
		wantErr    string
	}{
		{
			name:       "missing client_id",
			payload:    map[string]any{"connection": "email", "email": "a@b.c"},
			wantStatus: http.StatusBadRequest,
			wantErr:    "client_id is required",
		},
		{
			name:       "bad connection",
			payload:    map[string]any{"client_id": "c", "connection": "fax"},
			wantStatus: http.StatusBadRequest,
			wantErr:    "connection must be 'email' or 'sms'",
		},
		{
			name:       "email without address",
			payload:    map[string]any{"client_id": "c", "connection": "email"},
			wantStatus: http.StatusBadRequest,
			wantErr:    "email is required when connection is 'email'",
		},
		{
			name:       "sms without number",
			payload:    map[string]any{"client_id": "c", "connection": "sms"},
			wantStatus: http.StatusBadRequest,
			wantErr:    "phone_number is required when connection is 'sms'",
		},
		{
			name:       "email ok",
			payload:    map[string]any{"client_id": "c", "connection": "email", "email": "a@b.c"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "sms ok",
			payload:    map[string]any{"client_id": "c", "connection": "sms", "phone_number": "+3161234"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postJSON(t, client, srv.URL+"/passwordless/start", tc.payload)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			resp.Body.Close()

			if tc.wantErr != "" {
				if body["error"] != tc.wantErr {
					t.Fatalf("error = %v, want %q", body["error"], tc.wantErr)
				}
				return
			}
			if body["_id"] != "000000000000000000000000" {
				t.Fatalf("_id = %v", body["_id"])
			}
		})
	}
}

func TestDiscoveryDocument(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/.well-known/openid-configuration")
	if err != nil {
		t.Fatalf("GET discovery: %v", err)
	}
	var doc OpenIDConfiguration
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode discovery: %v", err)
	}
	resp.Body.Close()

	if doc.Issuer != srv.URL+"/" {
		t.Fatalf("issuer = %q, want %q", doc.Issuer, srv.URL+"/")
	}
	if doc.TokenEndpoint != srv.URL+"/oauth/token" {
		t.Fatalf("token_endpoint = %q", doc.TokenEndpoint)
	}
	if doc.JWKSURI != srv.URL+"/.well-known/jwks.json" {
		t.Fatalf("jwks_uri = %q", doc.JWKSURI)
	}
}

func TestJWKSServesSigningKey(t *testing.T) {
	srv, app := newTestServer(t, nil)
	client := noRedirectClient(t)

	resp, err := client.Get(srv.URL + "/.well-known/jwks.json")
	if err != nil {
		t.Fatalf("GET jwks: %v", err)
	}
	var doc struct {
		Keys []struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Alg string `json:"alg"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode jwks: %v", err)
	}
	resp.Body.Close()

	if len(doc.Keys) != 1 {
		t.Fatalf("keys = %d, want 1", len(doc.Keys))
	}
	if doc.Keys[0].Kid != devSigningKID || doc.Keys[0].Kty != "RSA" {
		t.Fatalf("unexpected key: %+v", doc.Keys[0])
	}

	// The published set must match the signer in use.
	set := app.Key.PublicJWKS()
	if len(set.Keys) != 1 || set.Keys[0].KeyID != devSigningKID {
		t.Fatalf("PublicJWKS mismatch: %+v", set.Keys)
	}
}

func TestCORSReflectsOrigin(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := noRedirectClient(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/heartbeat", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://app.test")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET /heartbeat: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://app.test" {
		t.Fatalf("Access-Control-Allow-Origin = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("Access-Control-Allow-Credentials = %q", got)
	}
	if got := resp.Header.Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Fatalf("Cache-Control = %q", got)
	}
}
