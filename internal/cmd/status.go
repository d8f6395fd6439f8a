package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/ux"
)

func newStatusCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local session",
		Long: `Show who the local session belongs to and when it expires. The session is
confirmed with the profile service first unless --offline is given; a
session the service no longer accepts is cleared. The token itself is
never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, app *App) error {
				if !offline && app.Store.Current().Authenticated {
					if _, err := app.Auth.WhoAmI(ctx); err != nil {
						if ctx.Err() != nil {
							return ctx.Err()
						}
						if errors.IsKind(err, errors.KindAuthorizationExpired) {
							app.Notify("%s", ux.ExpiredNotice(app.Ctx.NoColor))
						} else {
							app.Notify("Could not confirm the session: %v", err)
						}
					}
				}
				view := ux.NewStatusView(app.Store.Current(), string(app.Config.Mode), app.Routes.Carrier(), time.Now())
				return app.Print(view)
			})
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "show the local record without asking the profile service")
	return cmd
}
