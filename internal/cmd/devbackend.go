package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/health"
	"github.com/felixgeelhaar/portal/internal/log"
	"github.com/felixgeelhaar/portal/internal/mockbackend"
	"github.com/felixgeelhaar/portal/internal/server"
	"github.com/felixgeelhaar/portal/internal/version"
)

type devBackendOptions struct {
	authAddr        string
	userAddr        string
	gatewayAddr     string
	seed            []string
	secret          string
	accessTTL       time.Duration
	shutdownTimeout time.Duration
}

func newDevBackendCmd() *cobra.Command {
	opts := &devBackendOptions{}

	cmd := &cobra.Command{
		Use:   "dev-backend",
		Short: "Run a local identity, profile and gateway backend",
		Long: `Run in-memory identity, profile and gateway services on the default local
ports so portal can be tried without the real backends. Users live only
as long as the process.

  identity  http://localhost:5001/api/auth
  profile   http://localhost:5002/api/user
  gateway   http://localhost:5000/api

Each server also answers /health/live and /health/ready and drains
in-flight requests on Ctrl+C.

Examples:
  portal dev-backend --seed alice:Passw0rd!
  portal dev-backend --access-ttl 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevBackend(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.authAddr, "auth-addr", ":5001", "identity service listen address")
	flags.StringVar(&opts.userAddr, "user-addr", ":5002", "profile service listen address")
	flags.StringVar(&opts.gatewayAddr, "gateway-addr", ":5000", "gateway listen address")
	flags.StringSliceVar(&opts.seed, "seed", nil, "user to create at startup as username:password (repeatable)")
	flags.StringVar(&opts.secret, "secret", "portal-dev-secret", "token signing secret")
	flags.DurationVar(&opts.accessTTL, "access-ttl", 15*time.Minute, "access token lifetime")
	flags.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "time to drain connections on shutdown")
	return cmd
}

func runDevBackend(cmd *cobra.Command, opts *devBackendOptions) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	logCfg := log.DevelopmentConfig()
	logCfg.Output = cmd.ErrOrStderr()
	if levelName != "" {
		logCfg.Level = log.ParseLevel(levelName)
	}
	logger := log.New(logCfg)

	backend := mockbackend.New(
		mockbackend.WithSecret(opts.secret),
		mockbackend.WithAccessTTL(opts.accessTTL),
		mockbackend.WithLogger(logger),
	)
	for _, entry := range opts.seed {
		username, password, ok := strings.Cut(entry, ":")
		if !ok || username == "" || password == "" {
			return errors.New(errors.ErrCodeInvalidConfig, errors.KindValidation,
				fmt.Sprintf("invalid --seed %q", entry)).
				WithSuggestions("Use the form username:password", "Example: --seed alice:Passw0rd!")
		}
		if err := backend.AddUser(username, password, mockbackend.Profile{Name: username}); err != nil {
			return err
		}
	}

	pm := health.NewProbeManager(version.GetInfo().Version)
	servers := []*server.Server{
		server.NewServer(pm, server.Config{Name: "identity", Address: opts.authAddr, Handler: backend.AuthHandler(), ShutdownTimeout: opts.shutdownTimeout, Logger: logger}),
		server.NewServer(pm, server.Config{Name: "profile", Address: opts.userAddr, Handler: backend.UserHandler(), ShutdownTimeout: opts.shutdownTimeout, Logger: logger}),
		server.NewServer(pm, server.Config{Name: "gateway", Address: opts.gatewayAddr, Handler: backend.GatewayHandler(), ShutdownTimeout: opts.shutdownTimeout, Logger: logger}),
	}
	for _, srv := range servers {
		if err := srv.Listen(); err != nil {
			return errors.Wrap(errors.ErrCodeUnreachable, errors.KindTransport, "failed to start dev backend", err)
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "identity  http://%s/api/auth\n", servers[0].Addr())
	fmt.Fprintf(out, "profile   http://%s/api/user\n", servers[1].Addr())
	fmt.Fprintf(out, "gateway   http://%s/api\n", servers[2].Addr())
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	return serveUntilDone(cmd.Context(), servers, opts.shutdownTimeout)
}

// serveUntilDone runs every server until ctx is cancelled or one of them
// fails, then shuts all of them down.
func serveUntilDone(ctx context.Context, servers []*server.Server, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			if err := srv.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout+time.Second)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return stderrors.Join(errs...)
	})
	return g.Wait()
}
