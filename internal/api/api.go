// Package api provides the HTTP server for LineConcierge.
//
// It receives LINE webhooks, verifies their signature, converts the events and
// hands them to the dispatcher. It also exposes health and flow listing endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/LineConcierge/internal/flow"
	"github.com/BTreeMap/LineConcierge/internal/models"
)

// Default server settings.
const (
	DefaultAddr           = ":8080"
	DefaultRequestTimeout = 10 * time.Second
	shutdownTimeout       = 15 * time.Second
)

// ErrMissingChannelSecret is returned when the server is built without a LINE channel secret.
var ErrMissingChannelSecret = errors.New("LINE channel secret not set")

// EventHandler consumes webhook events in delivery order.
type EventHandler interface {
	HandleAll(ctx context.Context, events []models.InboundEvent)
}

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	ChannelSecret  string
	RequestTimeout time.Duration
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithChannelSecret sets the secret used to verify webhook signatures.
func WithChannelSecret(secret string) Option {
	return func(o *Opts) {
		o.ChannelSecret = secret
	}
}

// WithRequestTimeout bounds how long one webhook request may take to handle.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.RequestTimeout = d
	}
}

// Server serves the webhook and status endpoints.
type Server struct {
	handler EventHandler
	table   *flow.Table
	opts    Opts
}

// NewServer creates a server dispatching to handler. table backs the /flows endpoint.
func NewServer(handler EventHandler, table *flow.Table, opts ...Option) (*Server, error) {
	cfg := Opts{Addr: DefaultAddr, RequestTimeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ChannelSecret == "" {
		return nil, ErrMissingChannelSecret
	}
	if handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Server{handler: handler, table: table, opts: cfg}, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.opts.Addr }

// Handler returns the routes served by s.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/flows", s.flowsHandler)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	slog.Info("Server.Run: stopped")
	return nil
}
