package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/auth"
	"github.com/felixgeelhaar/portal/internal/ux"
)

func newRegisterCmd() *cobra.Command {
	var (
		req           auth.RegisterRequest
		sensors       int
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account on the identity service. Registering does not sign you
in; run 'portal login' afterwards.

Examples:
  portal register -u bob --name "Bob" --email bob@example.com --sensors 2 --topic bob/temp
  portal register   # prompts for every field`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if passwordStdin {
				p, err := readPassword(cmd.InOrStdin())
				if err != nil {
					return err
				}
				req.Password = p
			}
			if cmd.Flags().Changed("sensors") {
				req.Profile.Sensors = &sensors
			}
			if (req.Username == "" || req.Password == "") && ux.ShouldPrompt() {
				if err := ux.PromptRegistration(&req); err != nil {
					return err
				}
			}

			return run(cmd, func(ctx context.Context, app *App) error {
				view, err := app.Auth.Register(ctx, req)
				if err != nil {
					return err
				}
				app.Notify("Registered %s. Run 'portal login -u %s' to sign in.", view.Username, view.Username)
				return app.Print(ux.ProfileCard{Profile: view})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&req.Username, "username", "u", "", "username")
	flags.StringVarP(&req.Password, "password", "p", "", "password (prefer --password-stdin)")
	flags.BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	flags.StringVar(&req.Profile.Name, "name", "", "display name")
	flags.StringVar(&req.Profile.Email, "email", "", "email address")
	flags.StringVar(&req.Profile.Telephone, "telephone", "", "telephone number")
	flags.StringVar(&req.Profile.Role, "role", "", "requested role, passed through to the service")
	flags.IntVar(&sensors, "sensors", 0, "number of sensors")
	flags.StringVar(&req.Profile.Topic, "topic", "", "sensor topic")
	return cmd
}
