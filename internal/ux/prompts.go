package ux

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/portal/internal/auth"
)

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt reports whether prompts may be shown. They are disabled in CI
// environments or when stdin is not a terminal.
func ShouldPrompt() bool {
	for _, envVar := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"} {
		if os.Getenv(envVar) != "" {
			return false
		}
	}
	return IsInteractive()
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// PromptCredentials asks for whichever of username and password is empty.
func PromptCredentials(username, password string) (string, string, error) {
	var fields []huh.Field
	if username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Validate(required("username")).
			Value(&username))
	}
	if password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Validate(required("password")).
			Value(&password))
	}
	if len(fields) == 0 {
		return username, password, nil
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return "", "", fmt.Errorf("prompt failed: %w", err)
	}
	return username, password, nil
}

// PromptRegistration fills the empty fields of req interactively.
func PromptRegistration(req *auth.RegisterRequest) error {
	var sensors string
	if req.Profile.Sensors != nil {
		sensors = strconv.Itoa(*req.Profile.Sensors)
	}
	role := req.Profile.Role
	if role == "" {
		role = "user"
	}

	account := huh.NewGroup(
		huh.NewInput().Title("Username").Validate(required("username")).Value(&req.Username),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).
			Validate(func(s string) error {
				if len(s) < 6 {
					return fmt.Errorf("password must be at least 6 characters")
				}
				return nil
			}).
			Value(&req.Password),
	)
	profile := huh.NewGroup(
		huh.NewInput().Title("Name").Value(&req.Profile.Name),
		huh.NewInput().Title("Email").Value(&req.Profile.Email),
		huh.NewInput().Title("Telephone").Value(&req.Profile.Telephone),
		huh.NewSelect[string]().
			Title("Role").
			Options(huh.NewOptions("user", "admin")...).
			Value(&role),
		huh.NewInput().Title("Sensors").
			Description("Number of sensors, empty for none").
			Validate(func(s string) error {
				if s == "" {
					return nil
				}
				_, err := strconv.Atoi(s)
				return err
			}).
			Value(&sensors),
		huh.NewInput().Title("Topic").Value(&req.Profile.Topic),
	)

	if err := huh.NewForm(account, profile).Run(); err != nil {
		return fmt.Errorf("prompt failed: %w", err)
	}

	req.Profile.Role = role
	if sensors != "" {
		n, _ := strconv.Atoi(sensors)
		req.Profile.Sensors = &n
	}
	return nil
}
