package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/exitcode"
	"github.com/felixgeelhaar/portal/internal/mockbackend"
)

// backendFlags starts the backends for mode and returns the flags that point
// portal at them.
func backendFlags(t *testing.T, mode string) (*mockbackend.Backend, []string) {
	t.Helper()

	b := mockbackend.New(mockbackend.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, b.AddUser("alice", "Passw0rd!", mockbackend.Profile{Name: "Alice", Email: "alice@example.com"}))

	if mode == "gateway" {
		gw := httptest.NewServer(b.GatewayHandler())
		t.Cleanup(gw.Close)
		return b, []string{"--mode", "gateway", "--gateway-url", gw.URL + "/api"}
	}

	authSrv := httptest.NewServer(b.AuthHandler())
	t.Cleanup(authSrv.Close)
	userSrv := httptest.NewServer(b.UserHandler())
	t.Cleanup(userSrv.Close)
	return b, []string{"--mode", "direct",
		"--auth-url", authSrv.URL + "/api/auth",
		"--user-url", userSrv.URL + "/api/user",
	}
}

// isolate points HOME at a temp dir so neither a user config file nor a
// real session record is touched, and disables prompts.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CI", "1")
	for _, name := range []string{"PORTAL_MODE", "PORTAL_AUTH_URL", "PORTAL_USER_URL", "PORTAL_GATEWAY_URL",
		"PORTAL_SESSION_BACKEND", "PORTAL_REDIS_ADDR", "PORTAL_TIMEOUT", "PORTAL_LOG_LEVEL"} {
		t.Setenv(name, "")
	}
	return home
}

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func withFlags(base []string, args ...string) []string {
	return append(append([]string{}, args...), base...)
}

func TestRootCommandsRegistered(t *testing.T) {
	root := NewRootCmd()
	want := []string{"login", "logout", "register", "whoami", "status", "refresh", "request", "health", "dev-backend", "version"}

	found := map[string]bool{}
	for _, c := range root.Commands() {
		found[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, found[name], "command %q not registered", name)
	}
}

func TestLoginFlags(t *testing.T) {
	root := NewRootCmd()
	var login *cobra.Command
	for _, c := range root.Commands() {
		if c.Name() == "login" {
			login = c
		}
	}
	require.NotNil(t, login)

	for _, name := range []string{"username", "password", "password-stdin"} {
		assert.NotNil(t, login.Flags().Lookup(name), "flag %q", name)
	}
	assert.Equal(t, "u", login.Flags().Lookup("username").Shorthand)
}

func TestPersistentFlags(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"config", "mode", "auth-url", "user-url", "gateway-url", "session-backend",
		"timeout", "log-level", "output", "no-color", "trace", "metrics"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "flag %q", name)
	}
}

func TestLoginPrintsProfile(t *testing.T) {
	for _, mode := range []string{"direct", "gateway"} {
		t.Run(mode, func(t *testing.T) {
			isolate(t)
			_, flags := backendFlags(t, mode)

			res := execute(t, "Passw0rd!\n", withFlags(flags,
				"login", "-u", "alice", "--password-stdin", "-o", "json", "--session-backend", "none")...)
			require.NoError(t, res.err, res.stderr)

			var profile map[string]any
			require.NoError(t, json.Unmarshal([]byte(res.stdout), &profile))
			assert.Equal(t, "alice", profile["username"])
			assert.Equal(t, "Alice", profile["name"])
			assert.Contains(t, res.stderr, "Logged in as alice")
			assert.NotContains(t, res.stdout, "access_token")
		})
	}
}

func TestLoginRejected(t *testing.T) {
	for _, mode := range []string{"direct", "gateway"} {
		t.Run(mode, func(t *testing.T) {
			isolate(t)
			_, flags := backendFlags(t, mode)

			res := execute(t, "", withFlags(flags, "login", "-u", "alice", "-p", "wrong", "--session-backend", "none")...)
			require.Error(t, res.err)
			assert.True(t, errors.IsKind(res.err, errors.KindAuthenticationRejected))
			assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(res.err))
			assert.Empty(t, res.stdout)
		})
	}
}

func TestLoginMissingPassword(t *testing.T) {
	isolate(t)
	res := execute(t, "", "login", "-u", "alice", "--session-backend", "none",
		"--auth-url", "http://127.0.0.1:1/api/auth", "--user-url", "http://127.0.0.1:1/api/user")
	require.Error(t, res.err)
	assert.True(t, errors.IsKind(res.err, errors.KindValidation))
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(res.err))
}

func TestDirectSessionSurvivesInvocations(t *testing.T) {
	home := isolate(t)
	_, flags := backendFlags(t, "direct")

	res := execute(t, "Passw0rd!\n", withFlags(flags, "login", "-u", "alice", "--password-stdin")...)
	require.NoError(t, res.err, res.stderr)
	assert.FileExists(t, filepath.Join(home, ".portal", "session.json"))

	res = execute(t, "", withFlags(flags, "whoami", "-o", "json")...)
	require.NoError(t, res.err, res.stderr)
	var profile map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &profile))
	assert.Equal(t, "alice", profile["username"])

	res = execute(t, "", withFlags(flags, "status", "-o", "json")...)
	require.NoError(t, res.err, res.stderr)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &status))
	assert.Equal(t, true, status["authenticated"])
	assert.Equal(t, "alice", status["username"])
	assert.Equal(t, "bearer", status["carrier"])

	res = execute(t, "", withFlags(flags, "logout")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "Logged out alice")

	res = execute(t, "", withFlags(flags, "status", "--offline", "-o", "json")...)
	require.NoError(t, res.err, res.stderr)
	status = nil
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &status))
	assert.Equal(t, false, status["authenticated"])
}

func TestWhoAmIAfterServerSideExpiry(t *testing.T) {
	home := isolate(t)
	backend, flags := backendFlags(t, "direct")

	res := execute(t, "Passw0rd!\n", withFlags(flags, "login", "-u", "alice", "--password-stdin")...)
	require.NoError(t, res.err, res.stderr)

	require.True(t, backend.Expire("alice"))

	res = execute(t, "", withFlags(flags, "whoami", "--no-color")...)
	require.Error(t, res.err)
	assert.True(t, errors.IsKind(res.err, errors.KindAuthorizationExpired))
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(res.err))
	assert.Contains(t, res.stderr, "portal login")

	_, err := os.Stat(filepath.Join(home, ".portal", "session.json"))
	assert.True(t, os.IsNotExist(err), "session record should be removed")
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	for _, mode := range []string{"direct", "gateway"} {
		t.Run(mode, func(t *testing.T) {
			isolate(t)
			backend, flags := backendFlags(t, mode)

			res := execute(t, "S3cret!\n", withFlags(flags,
				"register", "-u", "bob", "--password-stdin", "--name", "Bob", "--sensors", "2",
				"-o", "json", "--session-backend", "none")...)
			require.NoError(t, res.err, res.stderr)
			assert.Equal(t, 2, backend.UserCount())
			assert.Contains(t, res.stderr, "portal login -u bob")

			var profile map[string]any
			require.NoError(t, json.Unmarshal([]byte(res.stdout), &profile))
			assert.Equal(t, "bob", profile["username"])

			res = execute(t, "", withFlags(flags, "status", "--offline", "-o", "json", "--session-backend", "none")...)
			require.NoError(t, res.err)
			assert.Contains(t, res.stdout, `"authenticated": false`)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	isolate(t)
	_, flags := backendFlags(t, "direct")

	res := execute(t, "", withFlags(flags, "register", "-u", "alice", "-p", "x", "--session-backend", "none")...)
	require.Error(t, res.err)
	pe, ok := errors.As(res.err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeRegistrationRejected, pe.Code)
}

func TestRefreshUnavailableInGateway(t *testing.T) {
	isolate(t)
	_, flags := backendFlags(t, "gateway")

	res := execute(t, "", withFlags(flags, "refresh")...)
	require.Error(t, res.err)
	pe, ok := errors.As(res.err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeRefreshUnavailable, pe.Code)
}

func TestRefreshDirect(t *testing.T) {
	isolate(t)
	_, flags := backendFlags(t, "direct")

	res := execute(t, "Passw0rd!\n", withFlags(flags, "login", "-u", "alice", "--password-stdin")...)
	require.NoError(t, res.err, res.stderr)

	res = execute(t, "", withFlags(flags, "refresh")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Session refreshed for alice")
}

func TestHealth(t *testing.T) {
	for _, mode := range []string{"direct", "gateway"} {
		t.Run(mode, func(t *testing.T) {
			isolate(t)
			_, flags := backendFlags(t, mode)

			res := execute(t, "", withFlags(flags, "health", "-o", "json", "--session-backend", "none")...)
			require.NoError(t, res.err, res.stderr)

			var report struct {
				Status string                    `json:"status"`
				Checks map[string]map[string]any `json:"checks"`
			}
			require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
			assert.Equal(t, "healthy", report.Status)
			if mode == "direct" {
				assert.Len(t, report.Checks, 2)
			} else {
				assert.Len(t, report.Checks, 1)
			}
		})
	}
}

func TestHealthUnreachable(t *testing.T) {
	isolate(t)
	res := execute(t, "", "health", "--session-backend", "none", "--timeout", "2s",
		"--auth-url", "http://127.0.0.1:1/api/auth", "--user-url", "http://127.0.0.1:1/api/user")
	require.Error(t, res.err)
	assert.Equal(t, exitcode.NetworkError, exitcode.DetermineExitCode(res.err))
}

func TestInvalidOutputFormat(t *testing.T) {
	isolate(t)
	res := execute(t, "", "status", "--offline", "-o", "xml", "--session-backend", "none")
	require.Error(t, res.err)
	assert.True(t, errors.IsKind(res.err, errors.KindValidation))
}

func TestInvalidMode(t *testing.T) {
	isolate(t)
	res := execute(t, "", "status", "--mode", "mesh")
	require.Error(t, res.err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(res.err))
}

func TestVersion(t *testing.T) {
	res := execute(t, "", "version")
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.stdout, "portal "))

	res = execute(t, "", "version", "--json")
	require.NoError(t, res.err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
}

func TestRequestCommand(t *testing.T) {
	isolate(t)
	_, flags := backendFlags(t, "direct")

	res := execute(t, "Passw0rd!\n", withFlags(flags, "login", "-u", "alice", "--password-stdin")...)
	require.NoError(t, res.err, res.stderr)

	res = execute(t, "", withFlags(flags, "request", "GET", "/profile", "-o", "json")...)
	require.NoError(t, res.err, res.stderr)
	var profile map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &profile))
	assert.Equal(t, "alice", profile["username"])

	res = execute(t, "", withFlags(flags, "request", "GET", "/profile")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, `"username": "alice"`)
}

func TestRequestAfterServerSideExpiry(t *testing.T) {
	home := isolate(t)
	backend, flags := backendFlags(t, "direct")

	res := execute(t, "Passw0rd!\n", withFlags(flags, "login", "-u", "alice", "--password-stdin")...)
	require.NoError(t, res.err, res.stderr)
	require.True(t, backend.Expire("alice"))

	res = execute(t, "", withFlags(flags, "request", "GET", "/profile", "--no-color")...)
	require.Error(t, res.err)
	assert.True(t, errors.IsKind(res.err, errors.KindAuthorizationExpired))
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(res.err))

	_, err := os.Stat(filepath.Join(home, ".portal", "session.json"))
	assert.True(t, os.IsNotExist(err), "session record should be removed")
}

func TestRequestInvalidInput(t *testing.T) {
	isolate(t)
	_, flags := backendFlags(t, "direct")

	res := execute(t, "", withFlags(flags, "request", "POST", "/profile", "--data", "{oops", "--session-backend", "none")...)
	require.Error(t, res.err)
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(res.err))

	res = execute(t, "", withFlags(flags, "request", "GET", "/profile", "--route", "billing", "--session-backend", "none")...)
	require.Error(t, res.err)
	assert.True(t, errors.IsKind(res.err, errors.KindValidation))
}
