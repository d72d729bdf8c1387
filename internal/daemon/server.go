// Package daemon serves the local HTTP API the browser extension and CLI
// talk to.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/runnerr0/sitetime/internal/host"
	"github.com/runnerr0/sitetime/internal/logging"
	"github.com/runnerr0/sitetime/internal/storage"
	"github.com/runnerr0/sitetime/internal/tracker"
)

// Store is the slice of the aggregation store the API reads and resets.
type Store interface {
	QueryRange(ctx context.Context, r storage.Range) (map[string]storage.VisitSummary, error)
	ClearAll(ctx context.Context) error
}

// SettingsStore holds the display settings.
type SettingsStore interface {
	HiddenSites(ctx context.Context) ([]string, error)
	SetHiddenSites(ctx context.Context, sites []string) error
	ShowHiddenSites(ctx context.Context) (bool, error)
	SetShowHiddenSites(ctx context.Context, show bool) error
}

// SessionSource reports the open foreground session.
type SessionSource interface {
	Current() (tracker.Session, bool)
}

// Options configures a Server.
type Options struct {
	Version        string
	AllowedOrigins []string
	MaxRequestSize int64
	Location       *time.Location
	Logger         *slog.Logger
}

// Server routes HTTP requests to the tracker and the store.
type Server struct {
	bridge   *host.Bridge
	store    Store
	settings SettingsStore
	sessions SessionSource

	version    string
	started    time.Time
	maxRequest int64
	loc        *time.Location
	log        *slog.Logger

	handler http.Handler
}

// New builds a Server and its routes.
func New(bridge *host.Bridge, store Store, settings SettingsStore, sessions SessionSource, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = 1 << 20
	}

	s := &Server{
		bridge:     bridge,
		store:      store,
		settings:   settings,
		sessions:   sessions,
		version:    opts.Version,
		started:    time.Now(),
		maxRequest: opts.MaxRequestSize,
		loc:        opts.Location,
		log:        opts.Logger,
	}

	router := mux.NewRouter()
	router.Use(s.observe)

	router.HandleFunc("/status", s.handleStatus).Methods("GET")
	router.HandleFunc("/v1/events", s.handleEvents).Methods("POST")
	router.HandleFunc("/v1/stats", s.handleStats).Methods("GET")
	router.HandleFunc("/v1/stats", s.handleClear).Methods("DELETE")
	router.HandleFunc("/v1/settings", s.handleGetSettings).Methods("GET")
	router.HandleFunc("/v1/settings", s.handlePutSettings).Methods("PUT")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
	s.handler = c.Handler(router)

	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on addr until ctx ends, then shuts the HTTP server down
// gracefully. Tracker and store teardown are left to the caller.
func (s *Server) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("daemon listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Error("graceful shutdown failed", "error", err)
		return err
	}
	s.log.Info("daemon stopped")
	return nil
}
