package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/ux"
)

func newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile of the signed-in user",
		Long: `Ask the profile service who the current session belongs to. An expired
session is cleared and you are asked to log in again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, app *App) error {
				view, err := app.Auth.WhoAmI(ctx)
				if err != nil {
					return err
				}
				return app.Print(ux.ProfileCard{Profile: view})
			})
		},
	}
}
