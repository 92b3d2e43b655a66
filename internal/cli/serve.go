package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stride/internal/scheduler"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	MetricsAddr   string
	SweepInterval time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background sweeper and metrics endpoint",
		Long: `Run the long-lived side of stride: the expiry sweeper completes challenges
whose window has closed, and Prometheus metrics are served on /metrics.

Flags override STRIDE_SWEEP_INTERVAL and STRIDE_METRICS_ADDR.

Example:
  stride serve --db ./stride.db --sweep-interval 1m --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "listen address for /metrics and /healthz")
	cmd.Flags().DurationVar(&opts.SweepInterval, "sweep-interval", 0, "expiry sweep interval (0 uses the environment)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cmd, opts.RootOptions, slog.LevelInfo)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	interval := a.cfg.SweepInterval
	if opts.SweepInterval > 0 {
		interval = opts.SweepInterval
	}
	if interval > 0 {
		sched, err := scheduler.New(a.engine, interval, scheduler.WithLogger(a.logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create sweeper", err)
		}
		sched.Start()
		defer func() {
			if err := sched.Shutdown(); err != nil {
				a.logger.Error("sweeper shutdown", "error", err)
			}
		}()
	}

	addr := a.cfg.MetricsAddr
	if opts.MetricsAddr != "" {
		addr = opts.MetricsAddr
	}
	var srv *http.Server
	serveErr := make(chan error, 1)
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	a.logger.Info("stride serving", "driver", a.cfg.DBDriver, "sweep_interval", interval, "metrics_addr", addr)
	fmt.Fprintln(cmd.OutOrStdout(), "Stride running. Press Ctrl-C to stop.")

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-serveErr:
		return WrapExitError(ExitFailure, "metrics server failed", err)
	}

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown", "error", err)
		}
	}
	a.logger.Info("stopped gracefully")
	return nil
}
