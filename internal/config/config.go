package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/felixgeelhaar/portal/internal/errors"
)

// Mode selects the backend topology.
type Mode string

const (
	// ModeDirect talks to the identity and profile services separately with a
	// bearer token.
	ModeDirect Mode = "direct"
	// ModeGateway talks to one gateway origin that keeps the session in a
	// cookie.
	ModeGateway Mode = "gateway"
)

// SessionBackend selects where a direct-mode session record is kept.
type SessionBackend string

const (
	SessionBackendFile  SessionBackend = "file"
	SessionBackendRedis SessionBackend = "redis"
	SessionBackendNone  SessionBackend = "none"
)

// Config is the resolved client configuration.
type Config struct {
	Mode    Mode          `yaml:"mode" json:"mode"`
	Direct  DirectConfig  `yaml:"direct" json:"direct"`
	Gateway GatewayConfig `yaml:"gateway" json:"gateway"`
	Session SessionConfig `yaml:"session" json:"session"`

	// Timeout bounds every backend request
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	Log LogConfig `yaml:"log" json:"log"`
}

// DirectConfig holds the per-service origins used in direct mode.
type DirectConfig struct {
	AuthURL string `yaml:"auth_url" json:"auth_url"`
	UserURL string `yaml:"user_url" json:"user_url"`
}

// GatewayConfig holds the single origin used in gateway mode.
type GatewayConfig struct {
	URL string `yaml:"url" json:"url"`
}

// SessionConfig controls the advisory session record.
type SessionConfig struct {
	Backend SessionBackend `yaml:"backend" json:"backend"`

	// Path of the file record, ~/.portal/session.json when empty
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	RedisAddr string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`

	// Profile namespaces the redis key, the OS user when empty
	Profile string `yaml:"profile,omitempty" json:"profile,omitempty"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the local development topology.
func Default() Config {
	return Config{
		Mode: ModeDirect,
		Direct: DirectConfig{
			AuthURL: "http://localhost:5001/api/auth",
			UserURL: "http://localhost:5002/api/user",
		},
		Gateway: GatewayConfig{
			URL: "http://localhost:5000/api",
		},
		Session: SessionConfig{
			Backend:   SessionBackendFile,
			RedisAddr: "localhost:6379",
		},
		Timeout: 15 * time.Second,
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Validate checks the mode, the origins the mode needs and the session backend.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeDirect:
		if err := validateOrigin("direct.auth_url", c.Direct.AuthURL); err != nil {
			return err
		}
		if err := validateOrigin("direct.user_url", c.Direct.UserURL); err != nil {
			return err
		}
	case ModeGateway:
		if err := validateOrigin("gateway.url", c.Gateway.URL); err != nil {
			return err
		}
	default:
		return invalid(fmt.Sprintf("invalid mode: %q (must be direct or gateway)", c.Mode))
	}

	switch c.Session.Backend {
	case SessionBackendFile, SessionBackendNone:
	case SessionBackendRedis:
		if c.Session.RedisAddr == "" {
			return invalid("session.redis_addr is required for the redis backend")
		}
	default:
		return invalid(fmt.Sprintf("invalid session backend: %q (must be file, redis or none)", c.Session.Backend))
	}

	if c.Timeout <= 0 {
		return invalid("timeout must be positive")
	}
	return nil
}

func validateOrigin(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewInvalidOriginError(raw, err).
			WithSuggestion(fmt.Sprintf("Set %s to an absolute http(s) URL", field))
	}
	return nil
}

func invalid(msg string) error {
	return errors.New(errors.ErrCodeInvalidConfig, errors.KindValidation, msg)
}
