package cmd

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/ux"
)

func newLoginCmd() *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and show your profile",
		Long: `Sign in with a username and password. Missing credentials are prompted
for when a terminal is attached.

In direct mode the access token is kept in the session record so later
commands reuse it. In gateway mode the session lives in a cookie for the
lifetime of this process only, so the profile is shown right away.

Examples:
  portal login -u alice
  echo "$PASSWORD" | portal login -u alice --password-stdin
  portal login --mode gateway -u alice -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				p, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				password = p
			}
			if (username == "" || password == "") && ux.ShouldPrompt() {
				var err error
				if username, password, err = ux.PromptCredentials(username, password); err != nil {
					return err
				}
			}

			return run(cmd, func(ctx context.Context, app *App) error {
				resp, err := app.Auth.Login(ctx, username, password)
				if err != nil {
					return err
				}
				app.Notify("Logged in as %s (%s mode)", resp.Identity.Username, app.Config.Mode)

				view, err := app.Auth.WhoAmI(ctx)
				if err != nil {
					return err
				}
				return app.Print(ux.ProfileCard{Profile: view})
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.Wrap(errors.ErrCodeMissingField, errors.KindValidation, "failed to read password from stdin", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		Long: `Ask the identity service to end the session, then clear the local session
whether or not the service could be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, app *App) error {
				username := app.Store.Current().Identity.Username
				if err := app.Auth.Logout(ctx); err != nil {
					app.Notify("Local session cleared, but the identity service did not confirm the logout")
					return err
				}
				if username != "" {
					app.Notify("Logged out %s", username)
				} else {
					app.Notify("Logged out")
				}
				return nil
			})
		},
	}
}
