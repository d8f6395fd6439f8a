package cmd

import (
	"context"
	"fmt"
	"io"
	"os/user"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/portal/internal/auth"
	"github.com/felixgeelhaar/portal/internal/config"
	"github.com/felixgeelhaar/portal/internal/errors"
	"github.com/felixgeelhaar/portal/internal/log"
	"github.com/felixgeelhaar/portal/internal/metrics"
	"github.com/felixgeelhaar/portal/internal/session"
	"github.com/felixgeelhaar/portal/internal/telemetry"
	"github.com/felixgeelhaar/portal/internal/topology"
	"github.com/felixgeelhaar/portal/internal/transport"
	"github.com/felixgeelhaar/portal/internal/ux"
	"github.com/felixgeelhaar/portal/internal/version"
)

// App is the object graph of one invocation: configuration, the session
// store, the transport clients and the auth facade built on them.
type App struct {
	Ctx      *CommandContext
	Config   *config.Config
	Logger   *log.Logger
	Store    *session.Manager
	Routes   *topology.Routes
	Auth     *auth.Service
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Redis    redis.UniversalClient

	stdout io.Writer
	stderr io.Writer

	shutdownTracing func(context.Context) error
}

// newApp loads configuration and wires the store, clients and facade. The
// session record is rehydrated in bearer mode.
func newApp(cmd *cobra.Command) (*App, error) {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.NewLoader().Load(cc.ConfigPath, &cc.Overrides)
	if err != nil {
		return nil, err
	}

	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.Log.Level)
	logCfg.Format = log.ParseFormat(cfg.Log.Format)
	logCfg.Output = cmd.ErrOrStderr()
	if cc.Trace && logCfg.Level > log.LevelDebug {
		logCfg.Level = log.LevelDebug
	}
	logger := log.New(logCfg)
	log.SetDefaultLogger(logger)

	app := &App{
		Ctx:    cc,
		Config: cfg,
		Logger: logger,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}

	tcfg := telemetry.DefaultConfig()
	if cc.Trace {
		tcfg = telemetry.DebugConfig(version.GetInfo().Version)
	}
	app.shutdownTracing, err = telemetry.InitProvider(cmd.Context(), tcfg, telemetry.NewLogExporter(logger))
	if err != nil {
		return nil, err
	}

	app.Registry, app.Metrics = metrics.NewRegistry()

	carrier := topology.CarrierFor(cfg.Mode)
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithMetrics(app.Metrics),
	}
	record, err := app.sessionRecord()
	if err != nil {
		return nil, err
	}
	if record != nil {
		opts = append(opts, session.WithRecord(record))
	}
	app.Store = session.NewManager(carrier, opts...)

	if _, err := app.Store.Rehydrate(cmd.Context()); err != nil {
		logger.WithError(err).Warn("ignoring unreadable session record")
	}

	app.Routes, err = topology.Build(*cfg, app.Store,
		transport.WithLogger(logger),
		transport.WithMetrics(app.Metrics),
	)
	if err != nil {
		return nil, err
	}

	app.Auth = auth.NewService(app.Routes, app.Store,
		auth.WithLogger(logger),
		auth.WithMetrics(app.Metrics),
	)
	return app, nil
}

func (a *App) sessionRecord() (session.Record, error) {
	// gateway sessions live in the cookie jar and are never persisted
	if a.Config.Mode == config.ModeGateway {
		return nil, nil
	}

	switch a.Config.Session.Backend {
	case config.SessionBackendFile:
		path := a.Config.Session.Path
		if path == "" {
			var err error
			if path, err = session.DefaultFilePath(); err != nil {
				return nil, errors.Wrap(errors.ErrCodeRecordReadFailed, errors.KindValidation,
					"cannot locate home directory for the session record", err)
			}
		}
		rec := session.NewFileRecord(path)
		a.Logger.Debug("session record", "backend", "file", "path", rec.Path())
		return rec, nil

	case config.SessionBackendRedis:
		a.Redis = redis.NewClient(&redis.Options{Addr: a.Config.Session.RedisAddr})
		profile := a.Config.Session.Profile
		if profile == "" {
			if u, err := user.Current(); err == nil {
				profile = u.Username
			}
		}
		rec := session.NewRedisRecord(a.Redis, profile)
		a.Logger.Debug("session record", "backend", "redis", "key", rec.Key())
		return rec, nil

	default:
		return nil, nil
	}
}

// Close flushes tracing, prints metrics when asked and closes the redis
// client.
func (a *App) Close(ctx context.Context) {
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.Logger.WithError(err).Debug("tracer shutdown failed")
		}
	}
	if a.Ctx.Metrics {
		if err := metrics.Dump(a.stderr, a.Registry); err != nil {
			a.Logger.WithError(err).Warn("failed to write metrics")
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

// Print writes data in the selected output format.
func (a *App) Print(data any) error {
	f, err := ux.NewFormatter(a.Ctx.Output, &ux.FormatterOptions{
		Writer:  a.stdout,
		NoColor: a.Ctx.NoColor,
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, errors.KindValidation, "invalid --output", err)
	}
	return f.Format(data)
}

// Notify writes a human message to stderr so stdout carries only command
// output.
func (a *App) Notify(format string, args ...any) {
	_, _ = fmt.Fprintf(a.stderr, format+"\n", args...)
}

// Handle reacts to an operation error before it is returned to main: an
// expired session gets the re-login notice.
func (a *App) Handle(err error) error {
	if errors.IsKind(err, errors.KindAuthorizationExpired) {
		a.Notify("%s", ux.ExpiredNotice(a.Ctx.NoColor))
	}
	return err
}

// run builds the App for cmd, calls fn and closes the App.
func run(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		app.Close(closeCtx)
	}()

	ctx, span := telemetry.StartCommandSpan(cmd.Context(), cmd.Name())
	err = fn(ctx, app)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.RecordSuccess(span)
	}
	span.End()
	return app.Handle(err)
}
