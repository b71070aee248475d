// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultIdentityEndpoint is the identity service base URL; {region} is substituted at load time.
const DefaultIdentityEndpoint = "https://bedrock-agentcore.{region}.amazonaws.com"

// RequestTimeout caps any single HTTP request to the coordinator, including the
// blocking identity call on the callback. IdentityTimeout must stay below it.
const RequestTimeout = 60 * time.Second

// Config holds all env configuration vars for callbackd.
type Config struct {
	// Region selects the identity service deployment. Required; the --region flag wins over REGION.
	Region string `env:"REGION"`

	// Listener address. Loopback by default -- the coordinator only ever talks to local processes.
	Host string `env:"CALLBACK_HOST" envDefault:"127.0.0.1"`
	Port int    `env:"CALLBACK_PORT" envDefault:"9090"`

	LogLevelName string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel     slog.Level `env:"-"`

	// Identity service client. Endpoint defaults to DefaultIdentityEndpoint for Region.
	// Client credentials are optional; when set, calls carry a bearer token fetched from
	// IdentityTokenURL, or from the token endpoint discovered at IdentityIssuerURL.
	IdentityEndpoint     string        `env:"IDENTITY_ENDPOINT"`
	IdentityIssuerURL    string        `env:"IDENTITY_ISSUER_URL"`
	IdentityTokenURL     string        `env:"IDENTITY_TOKEN_URL"`
	IdentityClientID     string        `env:"IDENTITY_CLIENT_ID"`
	IdentityClientSecret string        `env:"IDENTITY_CLIENT_SECRET"`
	IdentityScopes       []string      `env:"IDENTITY_SCOPES" envSeparator:","`
	IdentityTimeout      time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"30s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// OTELEndpoint enables OTLP trace export when non-empty.
	OTELEndpoint string `env:"OTEL_ENDPOINT"`
}

// LoadConfig reads environment variables and returns a validated Config.
// A non-empty region overrides REGION. Returns an error if no region is set.
func LoadConfig(region string) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if region != "" {
		cfg.Region = region
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if cfg.IdentityEndpoint == "" {
		cfg.IdentityEndpoint = strings.ReplaceAll(DefaultIdentityEndpoint, "{region}", cfg.Region)
	}
	cfg.IdentityEndpoint = strings.TrimSuffix(cfg.IdentityEndpoint, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env parsing cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Region) == "" {
		return fmt.Errorf("region is required (--region or REGION)")
	}
	// 0 is accepted so tests can bind an ephemeral port.
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("CALLBACK_PORT must be between 0 and 65535, got %d", c.Port)
	}
	if (c.IdentityClientID == "") != (c.IdentityClientSecret == "") {
		return fmt.Errorf("IDENTITY_CLIENT_ID and IDENTITY_CLIENT_SECRET must be set together")
	}
	if c.IdentityTokenURL != "" && c.IdentityIssuerURL != "" {
		return fmt.Errorf("set only one of IDENTITY_TOKEN_URL and IDENTITY_ISSUER_URL")
	}
	if c.IdentityClientID != "" && c.IdentityTokenURL == "" && c.IdentityIssuerURL == "" {
		return fmt.Errorf("IDENTITY_CLIENT_ID requires IDENTITY_TOKEN_URL or IDENTITY_ISSUER_URL")
	}
	if c.IdentityTimeout <= 0 {
		return fmt.Errorf("IDENTITY_TIMEOUT must be positive")
	}
	if c.IdentityTimeout >= RequestTimeout {
		return fmt.Errorf("IDENTITY_TIMEOUT must be below the %s request timeout, got %s", RequestTimeout, c.IdentityTimeout)
	}
	return nil
}

// Addr returns the listener address, e.g. "127.0.0.1:9090".
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// parseLogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func parseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
