package exitcode

import (
	"errors"
	"fmt"
	"testing"

	perrors "github.com/felixgeelhaar/portal/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"Interrupted", Interrupted, 3},
		{"Forbidden", Forbidden, 4},
		{"AuthError", AuthError, 5},
		{"NetworkError", NetworkError, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "validation kind is a usage error",
			err:      perrors.NewMissingFieldError("password"),
			expected: UsageError,
		},
		{
			name:     "expired session",
			err:      fmt.Errorf("whoami: %w", perrors.NewSessionExpiredError("profile", 401, "")),
			expected: AuthError,
		},
		{
			name:     "rejected credentials",
			err:      perrors.New(perrors.ErrCodeCredentialsRejected, perrors.KindAuthenticationRejected, "wrong password"),
			expected: AuthError,
		},
		{
			name:     "forbidden",
			err:      perrors.New(perrors.ErrCodeForbidden, perrors.KindForbidden, "admin only"),
			expected: Forbidden,
		},
		{
			name:     "transport kind",
			err:      perrors.NewUnreachableError("gateway", errors.New("dial tcp")),
			expected: NetworkError,
		},
		{
			name:     "unclassified connection error",
			err:      errors.New("connection reset by peer"),
			expected: NetworkError,
		},
		{
			name:     "unknown flag",
			err:      errors.New("unknown flag: --foo"),
			expected: UsageError,
		},
		{
			name:     "anything else",
			err:      errors.New("boom"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	if got := GetExitCodeDescription(AuthError); got != "Authentication error" {
		t.Errorf("unexpected description %q", got)
	}
	if got := GetExitCodeDescription(42); got != "Unknown error" {
		t.Errorf("unexpected description %q", got)
	}
}
