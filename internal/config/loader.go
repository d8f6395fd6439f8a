package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/portal/internal/errors"
)

// Environment variables read by the loader.
const (
	EnvMode           = "PORTAL_MODE"
	EnvAuthURL        = "PORTAL_AUTH_URL"
	EnvUserURL        = "PORTAL_USER_URL"
	EnvGatewayURL     = "PORTAL_GATEWAY_URL"
	EnvSessionBackend = "PORTAL_SESSION_BACKEND"
	EnvRedisAddr      = "PORTAL_REDIS_ADDR"
	EnvTimeout        = "PORTAL_TIMEOUT"
	EnvLogLevel       = "PORTAL_LOG_LEVEL"
)

// Loader resolves configuration from defaults, a YAML file, the environment
// and flag overrides, in increasing precedence.
type Loader struct {
	// userDir is the user config directory (~/.portal)
	userDir string

	getenv func(string) string
}

// NewLoader creates a loader reading ~/.portal/config.yaml and the process
// environment.
func NewLoader() *Loader {
	homeDir, _ := os.UserHomeDir()
	return &Loader{
		userDir: filepath.Join(homeDir, ".portal"),
		getenv:  os.Getenv,
	}
}

// SetUserDir overrides the user config directory.
func (l *Loader) SetUserDir(dir string) {
	l.userDir = dir
}

// SetEnv overrides the environment lookup, for tests.
func (l *Loader) SetEnv(getenv func(string) string) {
	l.getenv = getenv
}

// DefaultPath returns the user-level config file.
func (l *Loader) DefaultPath() string {
	return filepath.Join(l.userDir, "config.yaml")
}

// Load resolves the configuration. An explicit path must exist; the default
// user file is optional.
func (l *Loader) Load(path string, overrides *Overrides) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = l.DefaultPath()
	}
	if err := l.mergeFile(&cfg, path, explicit); err != nil {
		return nil, err
	}

	if err := l.applyEnv(&cfg); err != nil {
		return nil, err
	}
	overrides.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) mergeFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !required {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, errors.KindValidation,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	// Expand environment variables
	expanded := os.Expand(string(data), l.getenv)

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, errors.KindValidation,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}
	return nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	if v := l.getenv(EnvMode); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := l.getenv(EnvAuthURL); v != "" {
		cfg.Direct.AuthURL = v
	}
	if v := l.getenv(EnvUserURL); v != "" {
		cfg.Direct.UserURL = v
	}
	if v := l.getenv(EnvGatewayURL); v != "" {
		cfg.Gateway.URL = v
	}
	if v := l.getenv(EnvSessionBackend); v != "" {
		cfg.Session.Backend = SessionBackend(v)
	}
	if v := l.getenv(EnvRedisAddr); v != "" {
		cfg.Session.RedisAddr = v
	}
	if v := l.getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, errors.KindValidation,
				fmt.Sprintf("invalid %s: %q", EnvTimeout, v), err)
		}
		cfg.Timeout = d
	}
	if v := l.getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Overrides represents CLI flag overrides. Nil fields leave the resolved
// value untouched.
type Overrides struct {
	Mode           *string
	AuthURL        *string
	UserURL        *string
	GatewayURL     *string
	SessionBackend *string
	Timeout        *time.Duration
	LogLevel       *string
}

func (o *Overrides) apply(cfg *Config) {
	if o == nil {
		return
	}
	if o.Mode != nil {
		cfg.Mode = Mode(*o.Mode)
	}
	if o.AuthURL != nil {
		cfg.Direct.AuthURL = *o.AuthURL
	}
	if o.UserURL != nil {
		cfg.Direct.UserURL = *o.UserURL
	}
	if o.GatewayURL != nil {
		cfg.Gateway.URL = *o.GatewayURL
	}
	if o.SessionBackend != nil {
		cfg.Session.Backend = SessionBackend(*o.SessionBackend)
	}
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.LogLevel != nil {
		cfg.Log.Level = *o.LogLevel
	}
}
