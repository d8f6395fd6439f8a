package cmd

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/auth"
	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/ux"
)

func newRequestCmd() *cobra.Command {
	var (
		data  string
		route string
	)

	cmd := &cobra.Command{
		Use:   "request <METHOD> <path>",
		Short: "Send a request with the current session",
		Long: `Send an arbitrary request to the identity or profile service using the
current session, and print the response payload. A rejected session is
cleared exactly as it is for every other command.

Examples:
  portal request GET /profile
  portal request POST /refresh --route identity
  portal request PUT /profile --data '{"name":"Alice"}' -o yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := auth.RawRequest{Route: route, Method: args[0], Path: args[1]}
			if data != "" {
				req.Body = json.RawMessage(data)
			}

			return run(cmd, func(ctx context.Context, app *App) error {
				payload, err := app.Auth.Request(ctx, req)
				if err != nil {
					return err
				}
				if len(payload) == 0 {
					app.Notify("No content")
					return nil
				}
				if app.Ctx.Output == ux.OutputText {
					var buf bytes.Buffer
					if err := json.Indent(&buf, payload, "", "  "); err != nil {
						return errors.Wrap(errors.ErrCodeMalformedResponse, errors.KindTransport, "response is not valid JSON", err)
					}
					return app.Print(buf.String())
				}

				var v any
				if err := json.Unmarshal(payload, &v); err != nil {
					return errors.Wrap(errors.ErrCodeMalformedResponse, errors.KindTransport, "response is not valid JSON", err)
				}
				return app.Print(v)
			})
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringVar(&route, "route", auth.RouteProfile, "service to call: identity or profile")
	return cmd
}
