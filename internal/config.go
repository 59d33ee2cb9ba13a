package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/yosida95/uritemplate/v3"

	"github.com/destinyjobs/portal/internal/portal"
	"github.com/destinyjobs/portal/internal/upstream"
	pkgconfig "github.com/destinyjobs/portal/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Environment variables that override the config file.
const (
	EnvAPIBaseURL   = "PORTAL_API_BASE_URL"
	EnvMediaBaseURL = "PORTAL_MEDIA_BASE_URL"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Upstream  UpstreamConfig    `yaml:"upstream"`
	Resources ResourcesConfig   `yaml:"resources"`
	Breaker   BreakerConfig     `yaml:"breaker"`
	Cache     CacheConfig       `yaml:"cache"`
	Auth      AuthConfig        `yaml:"auth"`
}

// LoadConfig reads path on top of the defaults, applies environment
// overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Upstream.Validate(); err != nil {
		return err
	}
	if err := c.Resources.Validate(); err != nil {
		return err
	}
	if err := c.Breaker.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// OverrideFromEnv lets deployment variables win over the file.
func (c *Config) OverrideFromEnv() {
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.Upstream.APIBaseURL = v
	}
	if v := os.Getenv(EnvMediaBaseURL); v != "" {
		c.Upstream.MediaBaseURL = v
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// UpstreamConfig points at the marketplace API and its media host.
type UpstreamConfig struct {
	APIBaseURL     string            `yaml:"api_base_url"`
	MediaBaseURL   string            `yaml:"media_base_url"`
	ServiceToken   string            `yaml:"service_token"`
	RequestTimeout time.Duration     `yaml:"request_timeout"`
	DNSRefresh     time.Duration     `yaml:"dns_refresh"`
	Endpoints      map[string]string `yaml:"endpoints"`
}

// Validate validates the upstream configuration.
func (c *UpstreamConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.APIBaseURL, validation.Required, is.URL),
		validation.Field(&c.MediaBaseURL, validation.Required, is.URL),
		validation.Field(&c.RequestTimeout, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	for name, raw := range c.Endpoints {
		if _, err := uritemplate.New(raw); err != nil {
			return fmt.Errorf("upstream: endpoint %s: %w", name, err)
		}
	}
	return nil
}

// ClientOptions converts the configuration into upstream client options.
func (c *Config) ClientOptions(logger *slog.Logger) upstream.Options {
	return upstream.Options{
		BaseURL:        c.Upstream.APIBaseURL,
		RequestTimeout: c.Upstream.RequestTimeout,
		ServiceToken:   c.Upstream.ServiceToken,
		Endpoints:      upstream.Endpoints(c.Upstream.Endpoints),
		Breaker: upstream.BreakerSettings{
			MaxRequests:      c.Breaker.MaxRequests,
			Interval:         c.Breaker.Interval,
			Timeout:          c.Breaker.Timeout,
			FailureThreshold: c.Breaker.FailureThreshold,
			MinRequests:      c.Breaker.MinRequests,
		},
		Logger: logger,
	}
}

// ResourcesConfig bounds a single fetch per resource.
type ResourcesConfig struct {
	AvatarTimeout        time.Duration `yaml:"avatar_timeout"`
	NotificationsTimeout time.Duration `yaml:"notifications_timeout"`
	ProfileTimeout       time.Duration `yaml:"profile_timeout"`
}

// Validate validates the resource timeouts.
func (c *ResourcesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AvatarTimeout, validation.Required),
		validation.Field(&c.NotificationsTimeout, validation.Required),
		validation.Field(&c.ProfileTimeout, validation.Required, validation.Max(10*time.Minute)),
	)
}

// Timeouts converts the configuration for the portal service.
func (c *ResourcesConfig) Timeouts() portal.Timeouts {
	return portal.Timeouts{
		Avatar:        c.AvatarTimeout,
		Notifications: c.NotificationsTimeout,
		Profile:       c.ProfileTimeout,
	}
}

// BreakerConfig tunes the circuit breaker guarding the API.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
}

// Validate validates the breaker configuration.
func (c *BreakerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FailureThreshold, validation.Min(0.0), validation.Max(1.0)),
	)
}

// CacheConfig locates the last-known-good SQLite cache. An empty path
// disables it.
type CacheConfig struct {
	Path   string        `yaml:"path"`
	MaxAge time.Duration `yaml:"max_age"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Upstream: UpstreamConfig{
			APIBaseURL:     "http://localhost:8000/api",
			MediaBaseURL:   "http://localhost:8000",
			RequestTimeout: 2 * time.Minute,
			DNSRefresh:     5 * time.Minute,
		},
		Resources: ResourcesConfig{
			AvatarTimeout:        15 * time.Second,
			NotificationsTimeout: 15 * time.Second,
			ProfileTimeout:       2 * time.Minute,
		},
		Breaker: BreakerConfig{
			MaxRequests:      5,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
		Cache: CacheConfig{
			Path:   "./portal-cache.db",
			MaxAge: 7 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
