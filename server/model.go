package server

// User is an entry in the simulated identity directory. Users are created
// when the store is seeded and are immutable for the process lifetime.
type User struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
	Picture  string `json:"picture" yaml:"picture"`
}

// AuthSession correlates a successful credential login with the nonce the
// client supplied. Keyed by nonce; upserted on every login, never deleted.
type AuthSession struct {
	Username string `json:"username"`
	Nonce    string `json:"nonce"`
}

// BrowserSession is the ambient cookie-backed session shared by the login
// steps of a single user agent.
type BrowserSession struct {
	ID       string
	Username string
}

// ClientScopeRule maps a client id, and optionally an audience, to the scope
// string granted on its tokens. Rules are evaluated in declared order and the
// first match wins. A rule without an audience matches any audience for its
// client.
type ClientScopeRule struct {
	ClientID string `yaml:"client_id" json:"clientID"`
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`
	Scope    string `yaml:"scope" json:"scope"`
}

// TokenSet is the /oauth/token response payload.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// RefreshTokenPayload is the issuance context embedded reversibly in a
// refresh token. There is no server-side record: decoding the token recovers
// everything needed to reissue, and nothing revokes it. That trade-off is
// intentional for a simulation environment.
type RefreshTokenPayload struct {
	User     User   `json:"user"`
	ClientID string `json:"clientID"`
	Audience string `json:"audience"`
	Scope    string `json:"scope"`
}
