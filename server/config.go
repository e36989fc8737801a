package server

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"authsim/githubapi"
)

// Defaults mirror the hosted simulator: one well-known user and the usual
// OIDC scope triple.
const (
	DefaultScope    = "openid profile email"
	DefaultClientID = "authsim-dev-client"
	DefaultAudience = "https://authsim.dev/api"
)

// DefaultUser is the seeded directory entry available in every simulation
// unless the configuration supplies its own users.
var DefaultUser = User{
	Name:     "default",
	Email:    "default@example.com",
	Password: "12345",
	Picture:  "https://i.pravatar.cc/128?u=default@example.com",
}

// Config captures the full application configuration loaded from YAML and
// environment variables.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	GitHub GitHubConfig `yaml:"github"`
}

// ServerConfig controls listener, TLS, and HTTP concerns.
type ServerConfig struct {
	PublicURL       string    `yaml:"public_url"`
	DevListenAddr   string    `yaml:"dev_listen_addr"`
	HTTPListenAddr  string    `yaml:"http_listen_addr"`
	HTTPSListenAddr string    `yaml:"https_listen_addr"`
	DevMode         bool      `yaml:"dev_mode"`
	CookieDomain    string    `yaml:"cookie_domain"`
	TLS             TLSConfig `yaml:"tls"`
}

// TLSConfig defines autocert behaviour for production serving.
type TLSConfig struct {
	Domains []string `yaml:"domains"`
	Email   string   `yaml:"email"`
}

// AuthConfig describes the simulated tenant: server-wide defaults applied
// when a request omits client_id or audience, the scope rule table, and the
// seeded user directory.
type AuthConfig struct {
	ClientID   string            `yaml:"client_id"`
	Audience   string            `yaml:"audience"`
	Scope      string            `yaml:"scope"`
	ScopeRules []ClientScopeRule `yaml:"scope_rules"`
	Users      []User            `yaml:"users"`
}

// GitHubConfig controls the optional GitHub API mock listener. An empty seed
// serves the built-in default dataset.
type GitHubConfig struct {
	Enabled    bool           `yaml:"enabled"`
	ListenAddr string         `yaml:"listen_addr"`
	Seed       githubapi.Seed `yaml:"seed"`
}

// SeedUsers returns the configured directory, falling back to the default
// user when none is configured.
func (c AuthConfig) SeedUsers() []User {
	if len(c.Users) == 0 {
		return []User{DefaultUser}
	}
	return c.Users
}

// LoadConfig reads the YAML config file and merges environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(b))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			PublicURL:       "http://127.0.0.1:4400",
			DevListenAddr:   "127.0.0.1:4400",
			HTTPListenAddr:  ":80",
			HTTPSListenAddr: ":443",
			DevMode:         true,
			TLS: TLSConfig{
				Domains: []string{"localhost"},
			},
		},
		Auth: AuthConfig{
			ClientID: DefaultClientID,
			Audience: DefaultAudience,
			Scope:    DefaultScope,
		},
		GitHub: GitHubConfig{
			ListenAddr: "127.0.0.1:3300",
		},
	}
}

// DefaultConfig returns the default configuration template.
func DefaultConfig() Config {
	return defaultConfig()
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"AUTHSIM_SERVER_PUBLIC_URL":        func(v string) { cfg.Server.PublicURL = v },
		"AUTHSIM_SERVER_DEV_LISTEN_ADDR":   func(v string) { cfg.Server.DevListenAddr = v },
		"AUTHSIM_SERVER_HTTP_LISTEN_ADDR":  func(v string) { cfg.Server.HTTPListenAddr = v },
		"AUTHSIM_SERVER_HTTPS_LISTEN_ADDR": func(v string) { cfg.Server.HTTPSListenAddr = v },
		"AUTHSIM_SERVER_DEV_MODE":          func(v string) { cfg.Server.DevMode = parseBool(v, cfg.Server.DevMode) },
		"AUTHSIM_SERVER_TLS_DOMAINS":       func(v string) { cfg.Server.TLS.Domains = splitAndTrim(v) },
		"AUTHSIM_SERVER_TLS_EMAIL":         func(v string) { cfg.Server.TLS.Email = v },
		"AUTHSIM_AUTH_CLIENT_ID":           func(v string) { cfg.Auth.ClientID = v },
		"AUTHSIM_AUTH_AUDIENCE":            func(v string) { cfg.Auth.Audience = v },
		"AUTHSIM_AUTH_SCOPE":               func(v string) { cfg.Auth.Scope = v },
		"AUTHSIM_GITHUB_ENABLED":           func(v string) { cfg.GitHub.Enabled = parseBool(v, cfg.GitHub.Enabled) },
		"AUTHSIM_GITHUB_LISTEN_ADDR":       func(v string) { cfg.GitHub.ListenAddr = v },
	}

	for key, fn := range overrides {
		if val, ok := os.LookupEnv(key); ok {
			fn(val)
		}
	}
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate performs sanity checks on the config.
func (c Config) Validate() error {
	if c.Server.PublicURL == "" {
		return errors.New("server.public_url is required")
	}
	if !strings.HasPrefix(c.Server.PublicURL, "http://") && !strings.HasPrefix(c.Server.PublicURL, "https://") {
		return fmt.Errorf("server.public_url must start with http:// or https://, got: %s", c.Server.PublicURL)
	}
	if !c.Server.DevMode && len(c.Server.TLS.Domains) == 0 {
		return errors.New("server.tls.domains must be provided in production")
	}

	for i, rule := range c.Auth.ScopeRules {
		if rule.ClientID == "" {
			return fmt.Errorf("auth.scope_rules[%d]: client_id is required", i)
		}
	}

	seen := make(map[string]int, len(c.Auth.Users))
	for i, user := range c.Auth.Users {
		if user.Email == "" {
			return fmt.Errorf("auth.users[%d]: email is required", i)
		}
		key := strings.ToLower(user.Email)
		if j, dup := seen[key]; dup {
			return fmt.Errorf("auth.users[%d]: email %q duplicates auth.users[%d]", i, user.Email, j)
		}
		seen[key] = i
	}

	if c.GitHub.Enabled && c.GitHub.ListenAddr == "" {
		return errors.New("github.listen_addr is required when github.enabled is set")
	}

	return nil
}
