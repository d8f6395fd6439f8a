package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/config"
)

// CommandContext holds the persistent flags of one invocation. Commands
// read flags through it rather than package variables so the tree can be
// built more than once, as tests do.
type CommandContext struct {
	ConfigPath string
	Output     string
	NoColor    bool
	Trace      bool
	Metrics    bool

	Overrides config.Overrides
}

// NewCommandContext extracts command context from cobra.Command flags.
// Only flags the user set become overrides, so the config file and
// environment still apply to the rest.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	flags := cmd.Flags()

	cc := &CommandContext{}
	var err error
	if cc.ConfigPath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cc.Output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cc.NoColor, err = flags.GetBool("no-color"); err != nil {
		return nil, err
	}
	if cc.Trace, err = flags.GetBool("trace"); err != nil {
		return nil, err
	}
	if cc.Metrics, err = flags.GetBool("metrics"); err != nil {
		return nil, err
	}

	for name, target := range map[string]**string{
		"mode":            &cc.Overrides.Mode,
		"auth-url":        &cc.Overrides.AuthURL,
		"user-url":        &cc.Overrides.UserURL,
		"gateway-url":     &cc.Overrides.GatewayURL,
		"session-backend": &cc.Overrides.SessionBackend,
		"log-level":       &cc.Overrides.LogLevel,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetString(name)
		if err != nil {
			return nil, err
		}
		*target = &v
	}

	if flags.Changed("timeout") {
		d, err := flags.GetDuration("timeout")
		if err != nil {
			return nil, err
		}
		cc.Overrides.Timeout = &d
	}

	return cc, nil
}
