package server

import (
	"net/http"
	"strings"
)

// OpenIDConfiguration is the subset of the discovery document the simulated
// provider publishes, derived from the request's own base URL.
type OpenIDConfiguration struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

func (a *App) handleJWKS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.Key.PublicJWKS())
}

func (a *App) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(serviceURL(r), "/")

	writeJSON(w, OpenIDConfiguration{
		Issuer:                base + "/",
		AuthorizationEndpoint: base + "/authorize",
		TokenEndpoint:         base + "/oauth/token",
		UserinfoEndpoint:      base + "/userinfo",
		JWKSURI:               base + "/.well-known/jwks.json",
	})
}
