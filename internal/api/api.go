package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/store"
)

// Constants for server configuration
const (
	// DefaultAddr is the default listen address for the HTTP API.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultLeadsLimit caps GET /leads when no limit is given.
	DefaultLeadsLimit = 50
)

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address.
	Addr string
	// TwilioWebhook, when set, is mounted at POST /twilio/webhook so Twilio
	// can deliver inbound WhatsApp messages.
	TwilioWebhook http.HandlerFunc
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTwilioWebhook mounts the Twilio inbound webhook handler.
func WithTwilioWebhook(h http.HandlerFunc) Option {
	return func(o *Opts) { o.TwilioWebhook = h }
}

// Server is the HTTP transport over the intake orchestrator.
type Server struct {
	orchestrator *flow.Orchestrator
	store        store.Store
	addr         string
	mux          *http.ServeMux
}

// NewServer creates the API server and registers all routes.
func NewServer(orchestrator *flow.Orchestrator, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		orchestrator: orchestrator,
		store:        st,
		addr:         cfg.Addr,
		mux:          http.NewServeMux(),
	}

	s.mux.HandleFunc("/conversation/start", s.startConversationHandler)
	s.mux.HandleFunc("/conversation/respond", s.respondHandler)
	s.mux.HandleFunc("/conversation/submit-phone", s.submitPhoneHandler)
	s.mux.HandleFunc("/conversation/status/", s.sessionStatusHandler)
	s.mux.HandleFunc("/conversation/flow", s.flowHandler)
	s.mux.HandleFunc("/leads", s.leadsHandler)
	s.mux.HandleFunc("/status", s.statusHandler)
	s.mux.HandleFunc("/health", s.healthHandler)
	if cfg.TwilioWebhook != nil {
		s.mux.HandleFunc("/twilio/webhook", cfg.TwilioWebhook)
		slog.Debug("Server.NewServer: Twilio webhook mounted")
	}

	slog.Debug("Server.NewServer: routes registered", "addr", cfg.Addr)
	return s
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.mux,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: HTTP API listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("Server.Run: HTTP server failed", "error", err)
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
