package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes constructs the HTTP router with all simulated provider endpoints.
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(a.Logger))
	r.Use(RecoveryMiddleware(a.Logger))
	r.Use(CORSMiddleware)
	r.Use(NoCacheMiddleware)

	r.Get("/health", a.handleHealth)
	r.Get("/heartbeat", a.handleHeartbeat)

	r.Get("/authorize", a.handleAuthorize)
	r.Get("/login", a.handleLogin)
	r.Get("/u/login", a.handleUsernamePasswordLogin)
	r.Post("/usernamepassword/login", a.handleUsernamePasswordLogin)
	r.Post("/login/callback", a.handleLoginCallback)
	r.Post("/oauth/token", a.handleOAuthToken)
	r.Get("/userinfo", a.handleUserInfo)
	r.Get("/v2/logout", a.handleLogout)
	r.Post("/passwordless/start", a.handlePasswordlessStart)

	r.Get("/.well-known/jwks.json", a.handleJWKS)
	r.Get("/.well-known/openid-configuration", a.handleDiscovery)

	return r
}
