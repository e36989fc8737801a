package server

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL drives both the exp claim and the expires_in response field.
const tokenTTL = 24 * time.Hour

// Grant type values accepted by /oauth/token.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
)

// TokenFactory constructs and signs the token sets issued by /oauth/token,
// running the rules pipeline against the claims context before signing.
type TokenFactory struct {
	key          *SigningKey
	store        *InMemoryStore
	rules        []Rule
	scopeRules   []ClientScopeRule
	defaultScope string
	logger       *slog.Logger
}

// NewTokenFactory wires the factory from configuration.
func NewTokenFactory(cfg Config, store *InMemoryStore, key *SigningKey, logger *slog.Logger, rules []Rule) *TokenFactory {
	return &TokenFactory{
		key:          key,
		store:        store,
		rules:        rules,
		scopeRules:   cfg.Auth.ScopeRules,
		defaultScope: cfg.Auth.Scope,
		logger:       logger,
	}
}

// TokenRequest carries the resolved inputs of a single /oauth/token call.
type TokenRequest struct {
	// Body holds the raw request fields, JSON or form encoded.
	Body map[string]any
	// Issuer is the request's own base URL with a trailing slash.
	Issuer string
	// ClientID and Audience are already resolved against the configured
	// defaults by the handler.
	ClientID string
	Audience string
}

// IssueRefreshToken reports whether a refresh token accompanies the issued
// token set: the resolved scope must contain the offline_access token and
// the grant must be authorization_code.
func IssueRefreshToken(scope, grantType string) bool {
	if grantType != GrantAuthorizationCode {
		return false
	}
	return slices.Contains(strings.Fields(scope), "offline_access")
}

// TokenSet dispatches on grant_type and mints the response token set. A
// missing grant_type is treated as authorization_code, matching clients that
// post only a code.
func (f *TokenFactory) TokenSet(ctx context.Context, req TokenRequest) (TokenSet, error) {
	grantType := bodyString(req.Body, "grant_type")
	if grantType == "" {
		grantType = GrantAuthorizationCode
	}

	switch grantType {
	case GrantClientCredentials:
		return f.clientCredentials(req)

	case GrantRefreshToken:
		return f.refresh(ctx, req)

	case GrantPassword:
		user, ok := f.store.UserByCredentials(bodyString(req.Body, "username"), bodyString(req.Body, "password"))
		if !ok {
			return TokenSet{}, unauthorizedError()
		}
		return f.userTokens(ctx, req, user, grantType)

	case GrantAuthorizationCode:
		_, username, err := DecodeAuthCode(bodyString(req.Body, "code"))
		if err != nil {
			return TokenSet{}, unauthorizedError()
		}
		user, ok := f.store.FindUser(func(u User) bool {
			return strings.EqualFold(u.Email, username) || u.ID == username
		})
		if !ok {
			return TokenSet{}, unauthorizedError()
		}
		return f.userTokens(ctx, req, user, grantType)

	default:
		return TokenSet{}, httpError{status: 400, body: fmt.Sprintf("unsupported grant_type: %s", grantType)}
	}
}

// userTokens mints ID/access/refresh tokens for an authenticated end user.
func (f *TokenFactory) userTokens(ctx context.Context, req TokenRequest, user User, grantType string) (TokenSet, error) {
	scope := bodyString(req.Body, "scope")
	if scope == "" {
		scope = f.defaultScope
	}

	rc := &RuleContext{
		User:        &user,
		ClientID:    req.ClientID,
		Audience:    req.Audience,
		Scope:       scope,
		GrantType:   grantType,
		Issuer:      req.Issuer,
		IDToken:     map[string]any{},
		AccessToken: map[string]any{},
		Body:        req.Body,
	}

	return f.mint(ctx, rc, IssueRefreshToken(scope, grantType))
}

// refresh reissues a full token set from the context embedded in the refresh
// token, without re-authenticating the user.
func (f *TokenFactory) refresh(ctx context.Context, req TokenRequest) (TokenSet, error) {
	payload, err := DecodeRefreshToken(bodyString(req.Body, "refresh_token"))
	if err != nil {
		return TokenSet{}, unauthorizedError()
	}
	if payload.User.ID == "" {
		return TokenSet{}, unauthorizedError()
	}

	rc := &RuleContext{
		User:        &payload.User,
		ClientID:    payload.ClientID,
		Audience:    payload.Audience,
		Scope:       payload.Scope,
		GrantType:   GrantRefreshToken,
		Issuer:      req.Issuer,
		IDToken:     map[string]any{},
		AccessToken: map[string]any{},
		Body:        req.Body,
	}

	return f.mint(ctx, rc, true)
}

// clientCredentials mints a machine token. No end user is involved, so the
// rules pipeline is skipped and the resolved scope governs the token.
func (f *TokenFactory) clientCredentials(req TokenRequest) (TokenSet, error) {
	scope, err := ResolveScope(f.scopeRules, req.ClientID, req.Audience)
	if err != nil {
		return TokenSet{}, err
	}

	iat, exp := tokenWindow()
	claims := jwt.MapClaims{
		"sub":   req.ClientID,
		"aud":   req.Audience,
		"scope": scope,
		"iss":   req.Issuer,
		"iat":   iat.Unix(),
		"exp":   exp.Unix(),
	}
	accessToken, err := f.key.Sign(claims)
	if err != nil {
		return TokenSet{}, fmt.Errorf("sign access token: %w", err)
	}

	return TokenSet{
		AccessToken: accessToken,
		ExpiresIn:   int64(tokenTTL.Seconds()),
		TokenType:   "Bearer",
	}, nil
}

// mint runs the rules pipeline, then signs the ID and access tokens from the
// final claims context. Rule failures abort issuance with the triggering
// error.
func (f *TokenFactory) mint(ctx context.Context, rc *RuleContext, withRefresh bool) (TokenSet, error) {
	if err := RunRules(ctx, f.rules, rc); err != nil {
		return TokenSet{}, fmt.Errorf("rules pipeline: %w", err)
	}

	iat, exp := tokenWindow()

	idClaims := jwt.MapClaims{
		"sub":     rc.User.ID,
		"name":    rc.User.Name,
		"email":   rc.User.Email,
		"picture": rc.User.Picture,
		"aud":     rc.ClientID,
		"iss":     rc.Issuer,
		"iat":     iat.Unix(),
		"exp":     exp.Unix(),
	}
	if nonce := bodyString(rc.Body, "nonce"); nonce != "" {
		idClaims["nonce"] = nonce
	}
	for k, v := range rc.IDToken {
		idClaims[k] = v
	}
	idToken, err := f.key.Sign(idClaims)
	if err != nil {
		return TokenSet{}, fmt.Errorf("sign id token: %w", err)
	}

	accessClaims := jwt.MapClaims{
		"sub":   rc.User.ID,
		"aud":   rc.Audience,
		"scope": rc.Scope,
		"iss":   rc.Issuer,
		"iat":   iat.Unix(),
		"exp":   exp.Unix(),
	}
	for k, v := range rc.AccessToken {
		accessClaims[k] = v
	}
	accessToken, err := f.key.Sign(accessClaims)
	if err != nil {
		return TokenSet{}, fmt.Errorf("sign access token: %w", err)
	}

	set := TokenSet{
		AccessToken: accessToken,
		IDToken:     idToken,
		ExpiresIn:   int64(tokenTTL.Seconds()),
		TokenType:   "Bearer",
	}

	if withRefresh {
		rt, err := EncodeRefreshToken(RefreshTokenPayload{
			User:     *rc.User,
			ClientID: rc.ClientID,
			Audience: rc.Audience,
			Scope:    rc.Scope,
		})
		if err != nil {
			return TokenSet{}, err
		}
		set.RefreshToken = rt
	}

	return set, nil
}

// tokenWindow returns the iat/exp pair. iat sits one second in the past so
// the issued-at instant is strictly before any observer's clock reading.
func tokenWindow() (iat, exp time.Time) {
	iat = time.Now().Add(-time.Second)
	return iat, iat.Add(tokenTTL)
}

// bodyString reads a string field from a decoded request body, tolerating
// absent keys and non-string values.
func bodyString(body map[string]any, key string) string {
	if body == nil {
		return ""
	}
	v, ok := body[key].(string)
	if !ok {
		return ""
	}
	return v
}
