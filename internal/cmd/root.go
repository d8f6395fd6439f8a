package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/ux"
)

// NewRootCmd builds the portal command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "portal",
		Short: "Sign in to the identity and profile services",
		Long: `portal is a client for the identity and profile services. It logs you in,
keeps the session, shows who you are and logs you out again.

It talks to the services either directly (a bearer token kept in a local
session record) or through a gateway that holds the session in a cookie.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.portal/config.yaml)")
	flags.String("mode", "", "backend topology: direct or gateway")
	flags.String("auth-url", "", "identity service origin (direct mode)")
	flags.String("user-url", "", "profile service origin (direct mode)")
	flags.String("gateway-url", "", "gateway origin (gateway mode)")
	flags.String("session-backend", "", "session record: file, redis or none")
	flags.Duration("timeout", 0, "request timeout (default 15s)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.StringP("output", "o", ux.OutputText, "output format: text, json, yaml")
	flags.Bool("no-color", false, "disable colored output")
	flags.Bool("trace", false, "log a span for every request at debug level")
	flags.Bool("metrics", false, "print request metrics to stderr on exit")

	rootCmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
		newWhoAmICmd(),
		newStatusCmd(),
		newRefreshCmd(),
		newRequestCmd(),
		newHealthCmd(),
		newDevBackendCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by main.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
