package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/portal/internal/errors"
)

func envMap(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func newTestLoader(t *testing.T, env map[string]string) *Loader {
	t.Helper()
	l := NewLoader()
	l.SetUserDir(t.TempDir())
	l.SetEnv(envMap(env))
	return l
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeDirect, cfg.Mode)
	assert.Equal(t, "http://localhost:5001/api/auth", cfg.Direct.AuthURL)
	assert.Equal(t, "http://localhost:5002/api/user", cfg.Direct.UserURL)
	assert.Equal(t, "http://localhost:5000/api", cfg.Gateway.URL)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := newTestLoader(t, nil).Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	_, err := newTestLoader(t, nil).Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestLoadUserFile(t *testing.T) {
	l := newTestLoader(t, map[string]string{"GW": "https://gw.example.com/api"})
	writeConfig(t, l.userDir, `
mode: gateway
gateway:
  url: ${GW}
timeout: 5s
session:
  backend: none
`)

	cfg, err := l.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ModeGateway, cfg.Mode)
	assert.Equal(t, "https://gw.example.com/api", cfg.Gateway.URL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, SessionBackendNone, cfg.Session.Backend)
	// untouched keys keep their defaults
	assert.Equal(t, "http://localhost:5001/api/auth", cfg.Direct.AuthURL)
}

func TestLoadPrecedence(t *testing.T) {
	l := newTestLoader(t, map[string]string{
		EnvAuthURL:  "http://env:5001/api/auth",
		EnvUserURL:  "http://env:5002/api/user",
		EnvTimeout:  "30s",
		EnvLogLevel: "debug",
	})
	path := writeConfig(t, t.TempDir(), `
direct:
  auth_url: http://file:5001/api/auth
  user_url: http://file:5002/api/user
log:
  level: info
`)

	userURL := "http://flag:5002/api/user"
	cfg, err := l.Load(path, &Overrides{UserURL: &userURL})
	require.NoError(t, err)

	assert.Equal(t, "http://env:5001/api/auth", cfg.Direct.AuthURL, "env overrides file")
	assert.Equal(t, "http://flag:5002/api/user", cfg.Direct.UserURL, "flags override env")
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadInvalidTimeoutEnv(t *testing.T) {
	_, err := newTestLoader(t, map[string]string{EnvTimeout: "soon"}).Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvTimeout)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "mode: [direct\n")
	_, err := newTestLoader(t, nil).Load(path, nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "mesh" }},
		{"relative auth url", func(c *Config) { c.Direct.AuthURL = "/api/auth" }},
		{"bad user url scheme", func(c *Config) { c.Direct.UserURL = "ftp://host/api" }},
		{"gateway without host", func(c *Config) { c.Mode = ModeGateway; c.Gateway.URL = "http://" }},
		{"unknown session backend", func(c *Config) { c.Session.Backend = "etcd" }},
		{"redis without addr", func(c *Config) { c.Session.Backend = SessionBackendRedis; c.Session.RedisAddr = "" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindValidation))
		})
	}
}

func TestValidateGatewayIgnoresDirectOrigins(t *testing.T) {
	cfg := Default()
	cfg.Mode = ModeGateway
	cfg.Direct = DirectConfig{}
	assert.NoError(t, cfg.Validate())
}
