// Package client validates access tokens minted by the simulator, for test
// suites that stand up a resource server next to it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ValidatorConfig configures the token validator. JWKSURL is derived from
// the issuer when empty.
type ValidatorConfig struct {
	Issuer           string
	JWKSURL          string
	ExpectedAudience string
	CacheTTL         time.Duration
	HTTPClient       *http.Client
}

// Validator verifies simulator-signed JWT access tokens against the
// published JWKS document.
type Validator struct {
	cfg    ValidatorConfig
	client *http.Client

	mu      sync.RWMutex
	set     jose.JSONWebKeySet
	expires time.Time
}

// Claims is a simplified view of validated token claims.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  string
	Scopes    []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	Raw       map[string]any
}

// NewValidator creates a validator with sane defaults.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.JWKSURL == "" && cfg.Issuer != "" {
		cfg.JWKSURL = strings.TrimSuffix(cfg.Issuer, "/") + "/.well-known/jwks.json"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Validator{cfg: cfg, client: client}
}

// Validate fetches the JWKS if necessary and verifies the token signature
// and claims.
func (v *Validator) Validate(ctx context.Context, rawToken string) (*Claims, error) {
	if rawToken == "" {
		return nil, errors.New("token required")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(30*time.Second),
	)

	claims := jwt.MapClaims{}
	tok, err := parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		key, err := v.signingKey(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key.Key, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("token invalid")
	}

	return v.mapClaims(claims)
}

// HasScopes ensures the claims include every required scope.
func (v *Validator) HasScopes(claims *Claims, required ...string) error {
	have := make(map[string]struct{}, len(claims.Scopes))
	for _, sc := range claims.Scopes {
		have[sc] = struct{}{}
	}
	for _, need := range required {
		if _, ok := have[need]; !ok {
			return fmt.Errorf("missing scope %s", need)
		}
	}
	return nil
}

type claimsKey struct{}

// RequireAuth is middleware for resource servers under test: it validates
// the bearer token and injects the claims into the request context.
func RequireAuth(v *Validator, requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			claims, err := v.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if err := v.HasScopes(claims, requiredScopes...); err != nil {
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// ClaimsFromContext retrieves claims attached by the middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// signingKey resolves a key id against the cached JWKS, refetching on cache
// expiry or a kid miss.
func (v *Validator) signingKey(ctx context.Context, kid string) (*jose.JSONWebKey, error) {
	v.mu.RLock()
	set, fresh := v.set, time.Now().Before(v.expires)
	v.mu.RUnlock()

	if fresh {
		if key := findKey(set, kid); key != nil {
			return key, nil
		}
	}

	set, err := v.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	if key := findKey(set, kid); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("signing key %q not found", kid)
}

func (v *Validator) fetchJWKS(ctx context.Context) (jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return jose.JSONWebKeySet{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return jose.JSONWebKeySet{}, fmt.Errorf("jwks fetch failed: %s", resp.Status)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return jose.JSONWebKeySet{}, err
	}

	v.mu.Lock()
	v.set = set
	v.expires = time.Now().Add(v.cfg.CacheTTL)
	v.mu.Unlock()

	return set, nil
}

func (v *Validator) mapClaims(mc jwt.MapClaims) (*Claims, error) {
	raw := make(map[string]any, len(mc))
	for k, val := range mc {
		raw[k] = val
	}

	iss, _ := mc["iss"].(string)
	if v.cfg.Issuer != "" && iss != v.cfg.Issuer {
		return nil, fmt.Errorf("issuer mismatch: %s", iss)
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, errors.New("sub missing")
	}

	aud, _ := mc["aud"].(string)
	if v.cfg.ExpectedAudience != "" && aud != v.cfg.ExpectedAudience {
		return nil, fmt.Errorf("audience rejected: %s", aud)
	}

	scopeStr, _ := mc["scope"].(string)

	return &Claims{
		Subject:   sub,
		Issuer:    iss,
		Audience:  aud,
		Scopes:    strings.Fields(scopeStr),
		ExpiresAt: parseUnix(mc["exp"]),
		IssuedAt:  parseUnix(mc["iat"]),
		Raw:       raw,
	}, nil
}

func findKey(set jose.JSONWebKeySet, kid string) *jose.JSONWebKey {
	for _, k := range set.Keys {
		if kid == "" || k.KeyID == kid {
			key := k
			return &key
		}
	}
	return nil
}

func parseUnix(v any) time.Time {
	f, ok := v.(float64)
	if !ok {
		return time.Time{}
	}
	return time.Unix(int64(f), 0)
}
