package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/calbot/calbot/internal/store"
)

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// AdminKey gates the statistics endpoint. Empty disables it.
	AdminKey string
}

// Option defines a functional option for configuring the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAdminKey sets the key required by the statistics endpoint.
func WithAdminKey(key string) Option {
	return func(o *Opts) { o.AdminKey = key }
}

// Server serves the export, public-events, statistics, and health endpoints.
type Server struct {
	store    store.Store
	tokens   *TokenIssuer
	adminKey string
	httpSrv  *http.Server
}

// NewServer creates an API server backed by the given store and token issuer.
func NewServer(st store.Store, tokens *TokenIssuer, opts ...Option) *Server {
	var o Opts
	for _, opt := range opts {
		opt(&o)
	}
	if o.Addr == "" {
		o.Addr = ":8080"
	}
	s := &Server{
		store:    st,
		tokens:   tokens,
		adminKey: o.AdminKey,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/export/json", s.exportJSONHandler)
	mux.HandleFunc("/export/csv", s.exportCSVHandler)
	mux.HandleFunc("/api/public/events", s.publicEventsHandler)
	mux.HandleFunc("/api/stats", s.statsHandler)
	mux.HandleFunc("/health", s.healthHandler)
	s.httpSrv = &http.Server{
		Addr:              o.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: graceful shutdown failed", "error", err)
			return err
		}
		slog.Info("Server.Run: API server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}
