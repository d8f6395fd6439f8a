package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/health"
	"github.com/felixgeelhaar/portal/internal/transport"
	"github.com/felixgeelhaar/portal/internal/ux"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the configured backends are reachable",
		Long: `Call the health route of every configured backend, and of the redis
session store when it is in use. Health checks never send credentials.

Exit code is 0 when every check is healthy and 6 otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, app *App) error {
				manager := health.NewManager().WithTimeout(app.Config.Timeout)
				for _, client := range app.Routes.Targets() {
					checker, err := health.NewBackendChecker(client.Target(),
						transport.WithTimeout(app.Config.Timeout),
						transport.WithLogger(app.Logger),
						transport.WithMetrics(app.Metrics),
					)
					if err != nil {
						return err
					}
					manager.AddChecker(checker)
				}
				if app.Redis != nil {
					manager.AddChecker(health.NewRedisChecker(app.Redis, app.Config.Session.RedisAddr))
				}

				report := manager.Run(ctx)
				if err := app.Print(ux.HealthView{Report: report}); err != nil {
					return err
				}
				if report.Status != health.StatusHealthy {
					return errors.New(errors.ErrCodeBackendFailure, errors.KindTransport,
						"one or more backends are not healthy")
				}
				return nil
			})
		},
	}
}
