package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runnerr0/sitetime/internal/daemon"
	"github.com/runnerr0/sitetime/internal/host"
	"github.com/runnerr0/sitetime/internal/hostname"
	"github.com/runnerr0/sitetime/internal/logging"
	"github.com/runnerr0/sitetime/internal/tracker"
)

const (
	dispatchBuffer  = 64
	shutdownTimeout = 10 * time.Second
)

// runtime is the wired tracking pipeline: bridge → dispatcher → tracker → store.
type runtime struct {
	env        *env
	log        *slog.Logger
	registry   *host.Registry
	tracker    *tracker.Tracker
	dispatcher *tracker.Dispatcher
	bridge     *host.Bridge
	retention  *daemon.Retention
}

func newRuntime(e *env, logger *slog.Logger) (*runtime, error) {
	mode, err := hostname.ParseMode(e.cfg.Tracking.HostnameMode)
	if err != nil {
		return nil, err
	}

	registry := host.NewRegistry()
	t := tracker.New(e.store, registry, tracker.Options{
		Debounce:   e.cfg.Debounce(),
		Normalizer: hostname.New(mode),
		Location:   e.loc,
		Logger:     logger,
	})
	dispatcher := tracker.NewDispatcher(t, dispatchBuffer, logger)
	bridge := host.NewBridge(registry, dispatcher, logger)

	return &runtime{
		env:        e,
		log:        logger,
		registry:   registry,
		tracker:    t,
		dispatcher: dispatcher,
		bridge:     bridge,
		retention:  daemon.NewRetention(e.cfg.Retention, e.loc, e.store, logger).WithResetter(bridge),
	}, nil
}

// serveHTTP runs the daemon and the retention runner until ctx ends.
func (r *runtime) serveHTTP(ctx context.Context, addr, version string) error {
	srv := daemon.New(r.bridge, r.env.store, r.env.settings, r.tracker, daemon.Options{
		Version:        version,
		AllowedOrigins: r.env.cfg.Daemon.AllowedOrigins,
		MaxRequestSize: int64(r.env.cfg.Daemon.MaxRequestSize),
		Location:       r.env.loc,
		Logger:         r.log,
	})

	go r.runRetention(ctx)
	return srv.Serve(ctx, addr)
}

// serveNative answers native messages on in/out until EOF or ctx ends. A
// read blocked on in is abandoned when ctx ends; shutdown still flushes.
func (r *runtime) serveNative(ctx context.Context, in io.Reader, out io.Writer) error {
	go r.runRetention(ctx)

	done := make(chan error, 1)
	go func() {
		done <- r.bridge.ServeNative(ctx, in, out, r.env.cfg.Native.MaxMessageSize)
	}()

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

func (r *runtime) runRetention(ctx context.Context) {
	if err := r.retention.Run(ctx); err != nil {
		r.log.Error("retention stopped", "error", err)
	}
}

// shutdown drains the dispatcher and flushes the tracker. The store stays
// open; the env owner closes it.
func (r *runtime) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.dispatcher.Close(ctx); err != nil {
		return fmt.Errorf("flush tracker: %w", err)
	}
	return nil
}

// Execute implements the go-flags Commander interface for IngestCommand.
func (c *IngestCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Host != "" {
		cfg.Daemon.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Daemon.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}

	logOpts, err := logging.FromConfig(cfg, c.globals != nil && c.globals.Verbose)
	if err != nil {
		return err
	}
	logger, logCloser, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logCloser.Close()

	e, err := openEnvWith(c.globals, cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	rt, err := newRuntime(e, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("sitetime starting",
		"version", c.version,
		"database", e.dbPath,
		"native", c.Native,
		"retention", cfg.Retention.Policy,
	)

	var serveErr error
	if c.Native {
		serveErr = rt.serveNative(ctx, os.Stdin, os.Stdout)
	} else {
		serveErr = rt.serveHTTP(ctx, cfg.Addr(), c.version)
	}
	stop()

	shutdownErr := rt.shutdown()
	logger.Info("sitetime stopped")
	return errors.Join(serveErr, shutdownErr)
}
