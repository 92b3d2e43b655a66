package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stride/internal/catalog"
	"github.com/roach88/stride/internal/config"
	"github.com/roach88/stride/internal/engine"
	"github.com/roach88/stride/internal/identity"
	"github.com/roach88/stride/internal/metrics"
	"github.com/roach88/stride/internal/notify"
	"github.com/roach88/stride/internal/store"
	"github.com/roach88/stride/internal/store/memstore"
	"github.com/roach88/stride/internal/store/pgstore"
	"github.com/roach88/stride/internal/telemetry"
)

// app is the wired process: store, catalog, engine and the notification
// pipeline behind it.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	catalog    *catalog.Catalog
	store      engine.Store
	engine     *engine.Engine
	metrics    *metrics.Metrics
	dispatcher *notify.Dispatcher

	closers []func(context.Context) error
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	var dotenv []string
	if opts.EnvFile != "" {
		dotenv = []string{opts.EnvFile}
	}
	cfg, err := config.Load(dotenv...)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Driver != "" {
		cfg.DBDriver = opts.Driver
	}
	if opts.DB != "" {
		cfg.DBPath = opts.DB
	}
	if opts.Catalog != "" {
		cfg.CatalogDir = opts.Catalog
	}
	return cfg, cfg.Validate()
}

// newLogger installs the process logger: text on stderr, JSON when the
// command output is JSON. Debug with --verbose, otherwise level.
func newLogger(opts *RootOptions, w io.Writer, level slog.Level) *slog.Logger {
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// openApp wires everything a command needs. The caller must call close.
func openApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions, level slog.Level) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  newLogger(opts, cmd.ErrOrStderr(), level),
		metrics: metrics.New(),
	}
	if err := a.open(ctx, opts); err != nil {
		_ = a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context, opts *RootOptions) error {
	shutdownTracing, err := telemetry.Setup(ctx, a.cfg.ServiceName, a.cfg.OTelEndpoint)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	a.catalog = catalog.Builtin()
	if a.cfg.CatalogDir != "" {
		extra, err := catalog.LoadDir(a.cfg.CatalogDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load catalog", err)
		}
		a.catalog = a.catalog.Merge(extra)
		a.logger.Debug("catalog loaded", "dir", a.cfg.CatalogDir, "templates", a.catalog.Len())
	}

	if err := a.openStore(ctx); err != nil {
		return err
	}

	notifier, err := a.notifier(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up notifications", err)
	}
	a.dispatcher = notify.NewDispatcher(notifier,
		notify.WithRate(a.cfg.NotifyRate, a.cfg.NotifyBurst),
		notify.WithLogger(a.logger),
		notify.WithMetrics(a.metrics),
	)
	a.dispatcher.Start(context.WithoutCancel(ctx))
	a.closers = append(a.closers, a.dispatcher.Close)

	engineOpts := []engine.Option{
		engine.WithDispatcher(a.dispatcher),
		engine.WithLogger(a.logger),
		engine.WithMetrics(a.metrics),
		engine.WithTracer(telemetry.Tracer()),
	}
	if len(a.cfg.Users) > 0 {
		engineOpts = append(engineOpts, engine.WithIdentity(identity.NewDirectory(a.cfg.Users...)))
	}
	if opts.Now != "" {
		now, err := time.Parse(time.RFC3339, opts.Now)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --now", err)
		}
		engineOpts = append(engineOpts, engine.WithClock(engine.FixedClock(now.UTC())))
	}
	a.engine = engine.New(a.store, a.catalog, engineOpts...)
	return nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.DBDriver {
	case config.DriverMemory:
		a.store = memstore.New()
	case config.DriverPostgres:
		st, err := pgstore.Open(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open postgres", err)
		}
		a.store = st
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
	default:
		st, err := store.Open(a.cfg.DBPath, store.WithLogger(a.logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		a.store = st
		a.closers = append(a.closers, func(context.Context) error { return st.Close() })
	}
	a.logger.Debug("store ready", "driver", a.cfg.DBDriver)
	return nil
}

// notifier logs every delivery and pushes through FCM when credentials
// are configured.
func (a *app) notifier(ctx context.Context) (notify.Notifier, error) {
	logged := notify.LogNotifier{Logger: a.logger}
	if a.cfg.FCMCredentials == "" {
		return logged, nil
	}
	fcm, err := notify.NewFCMNotifier(ctx, a.cfg.FCMCredentials)
	if err != nil {
		return nil, fmt.Errorf("fcm: %w", err)
	}
	return notify.Multi{logged, fcm}, nil
}

// close drains pending notifications and releases resources in reverse
// order of acquisition.
func (a *app) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && a.logger != nil {
		a.logger.Error("shutdown", "error", err)
		return err
	}
	return nil
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app, f *OutputFormatter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, opts, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer a.close(context.Background())
	return fn(ctx, a, opts.formatter(cmd))
}
