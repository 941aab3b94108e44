package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSecretEnv names the environment variable holding the JWT secret when
// the file does not name another one.
const DefaultSecretEnv = "BANKD_JWT_SECRET"

type RateLimitConfig struct {
	ID                string  `yaml:"id"`
	RequestsPerMinute float64 `yaml:"requestsPerMinute"`
	RatePerSecond     float64 `yaml:"ratePerSecond"`
	Burst             int     `yaml:"burst"`
}

// PerSecond resolves the configured rate, preferring ratePerSecond.
func (r RateLimitConfig) PerSecond() float64 {
	if r.RatePerSecond > 0 {
		return r.RatePerSecond
	}
	return r.RequestsPerMinute / 60.0
}

type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName"`
	Metrics       bool   `yaml:"metrics"`
	Tracing       bool   `yaml:"tracing"`
	LogRequests   bool   `yaml:"logRequests"`
	MetricsPrefix string `yaml:"metricsPrefix"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

type Config struct {
	ListenAddress string              `yaml:"listen"`
	ReadTimeout   time.Duration       `yaml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout"`
	RateLimits    []RateLimitConfig   `yaml:"rateLimits"`
	Observability ObservabilityConfig `yaml:"observability"`
	Auth          AuthConfig          `yaml:"auth"`
	CORS          CORSConfig          `yaml:"cors"`
	Security      SecurityConfig      `yaml:"security"`
}

// AuthConfig configures HS256 bearer tokens. The token subject is the caller
// address; AdminScope must be present for admin routes.
type AuthConfig struct {
	Enabled        bool          `yaml:"enabled"`
	HMACSecret     string        `yaml:"hmacSecret"`
	HMACSecretEnv  string        `yaml:"hmacSecretEnv"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	ScopeClaim     string        `yaml:"scopeClaim"`
	AdminScope     string        `yaml:"adminScope"`
	OptionalPaths  []string      `yaml:"optionalPaths"`
	AllowAnonymous bool          `yaml:"allowAnonymous"`
	ClockSkew      time.Duration `yaml:"clockSkew"`
	enabledSet     bool          `yaml:"-"`
}

func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawAuthConfig struct {
		Enabled        *bool         `yaml:"enabled"`
		HMACSecret     string        `yaml:"hmacSecret"`
		HMACSecretEnv  string        `yaml:"hmacSecretEnv"`
		Issuer         string        `yaml:"issuer"`
		Audience       string        `yaml:"audience"`
		ScopeClaim     string        `yaml:"scopeClaim"`
		AdminScope     string        `yaml:"adminScope"`
		OptionalPaths  []string      `yaml:"optionalPaths"`
		AllowAnonymous bool          `yaml:"allowAnonymous"`
		ClockSkew      time.Duration `yaml:"clockSkew"`
	}
	var raw rawAuthConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	a.enabledSet = raw.Enabled != nil
	a.Enabled = raw.Enabled != nil && *raw.Enabled
	a.HMACSecret = raw.HMACSecret
	a.HMACSecretEnv = raw.HMACSecretEnv
	a.Issuer = raw.Issuer
	a.Audience = raw.Audience
	a.ScopeClaim = raw.ScopeClaim
	a.AdminScope = raw.AdminScope
	a.OptionalPaths = raw.OptionalPaths
	a.AllowAnonymous = raw.AllowAnonymous
	a.ClockSkew = raw.ClockSkew
	return nil
}

type SecurityConfig struct {
	TLSCertFile string `yaml:"tlsCertFile"`
	TLSKeyFile  string `yaml:"tlsKeyFile"`
}

var (
	ErrSecretMissing = errors.New("auth.enabled requires a JWT secret")
	ErrTLSIncomplete = errors.New("security.tlsCertFile and security.tlsKeyFile must be set together")
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddress: ":8080",
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		RateLimits: []RateLimitConfig{
			{ID: "read", RatePerSecond: 20, Burst: 40},
			{ID: "write", RatePerSecond: 2, Burst: 10},
		},
		Observability: ObservabilityConfig{
			ServiceName:   "bankd-gateway",
			Metrics:       true,
			Tracing:       true,
			LogRequests:   true,
			MetricsPrefix: "gateway",
		},
		Auth: AuthConfig{
			Enabled:    true,
			ScopeClaim: "scope",
			AdminScope: "admin",
			ClockSkew:  2 * time.Minute,
			enabledSet: true,
		},
	}
}

// Load reads the YAML file at path on top of Default. An empty path yields
// the defaults. The JWT secret is taken from the environment unless the file
// carries one inline.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) normalise() {
	if !cfg.Auth.enabledSet {
		cfg.Auth.Enabled = true
		cfg.Auth.enabledSet = true
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if strings.TrimSpace(cfg.Auth.ScopeClaim) == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if strings.TrimSpace(cfg.Auth.AdminScope) == "" {
		cfg.Auth.AdminScope = "admin"
	}
	if strings.TrimSpace(cfg.Auth.HMACSecretEnv) == "" {
		cfg.Auth.HMACSecretEnv = DefaultSecretEnv
	}
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		cfg.Auth.HMACSecret = strings.TrimSpace(os.Getenv(cfg.Auth.HMACSecretEnv))
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	for i := range cfg.RateLimits {
		cfg.RateLimits[i].ID = strings.ToLower(strings.TrimSpace(cfg.RateLimits[i].ID))
	}
}

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Auth.Enabled && cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("%w: set %s or auth.hmacSecret", ErrSecretMissing, cfg.Auth.HMACSecretEnv)
	}
	trimmed := make([]string, len(cfg.Auth.OptionalPaths))
	for i, path := range cfg.Auth.OptionalPaths {
		trimmedPath := strings.TrimSpace(path)
		if trimmedPath == "" {
			return fmt.Errorf("auth.optionalPaths[%d] cannot be empty", i)
		}
		if !strings.HasPrefix(trimmedPath, "/") {
			return fmt.Errorf("auth.optionalPaths[%d] must start with '/'", i)
		}
		trimmed[i] = trimmedPath
	}
	cfg.Auth.OptionalPaths = trimmed
	if cfg.Auth.Enabled && cfg.Auth.AllowAnonymous && len(cfg.Auth.OptionalPaths) == 0 {
		return fmt.Errorf("auth.optionalPaths must list at least one entry when auth.allowAnonymous is true")
	}
	seen := make(map[string]struct{}, len(cfg.RateLimits))
	for i, limit := range cfg.RateLimits {
		if limit.ID == "" {
			return fmt.Errorf("rateLimits[%d].id cannot be empty", i)
		}
		if _, dup := seen[limit.ID]; dup {
			return fmt.Errorf("rateLimits[%d]: duplicate id %q", i, limit.ID)
		}
		seen[limit.ID] = struct{}{}
		if limit.PerSecond() <= 0 {
			return fmt.Errorf("rateLimits[%d]: rate must be positive", i)
		}
		if limit.Burst < 0 {
			return fmt.Errorf("rateLimits[%d]: burst must not be negative", i)
		}
	}
	hasCert := strings.TrimSpace(cfg.Security.TLSCertFile) != ""
	hasKey := strings.TrimSpace(cfg.Security.TLSKeyFile) != ""
	if hasCert != hasKey {
		return ErrTLSIncomplete
	}
	return nil
}

// TLSEnabled reports whether the listener should serve HTTPS.
func (cfg Config) TLSEnabled() bool {
	return strings.TrimSpace(cfg.Security.TLSCertFile) != ""
}

// RateLimit returns the limit named id.
func (cfg Config) RateLimit(id string) (RateLimitConfig, bool) {
	for _, limit := range cfg.RateLimits {
		if limit.ID == id {
			return limit, true
		}
	}
	return RateLimitConfig{}, false
}
