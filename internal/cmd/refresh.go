package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/ux"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		Long: `Exchange the stored refresh token for a new access token. Only available
in direct mode; gateway sessions are renewed by the gateway.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, app *App) error {
				resp, err := app.Auth.Refresh(ctx)
				if err != nil {
					return err
				}
				if app.Ctx.Output != ux.OutputText {
					return app.Print(resp)
				}
				msg := fmt.Sprintf("Session refreshed for %s", resp.Identity.Username)
				if !resp.ExpiresAt.IsZero() {
					msg += fmt.Sprintf(", expires %s", resp.ExpiresAt.Local().Format(time.RFC1123))
				}
				return app.Print(msg)
			})
		},
	}
}
