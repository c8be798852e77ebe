package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/wifiprov/internal/gateway"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/monitor"
	"github.com/muurk/wifiprov/internal/provision"
)

// Config holds the server configuration
type Config struct {
	Listen          string
	WSPath          string
	Metrics         bool
	ShutdownTimeout time.Duration

	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// SessionView is the read side of the provisioning session.
type SessionView interface {
	Snapshot() provision.Snapshot
}

// LinkView reports the wireless link status.
type LinkView interface {
	Current() monitor.Status
}

// Server serves the channel endpoint and the HTTP API.
type Server struct {
	config  Config
	session SessionView
	hub     *gateway.Hub
	link    LinkView
	router  *mux.Router

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
}

// New creates a Server. link may be nil when no link monitor runs.
func New(config Config, session SessionView, hub *gateway.Hub, link LinkView) *Server {
	if config.WSPath == "" {
		config.WSPath = "/ws"
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		config:  config,
		session: session,
		hub:     hub,
		link:    link,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.Handle(s.config.WSPath, s.hub).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)

	if s.config.Metrics {
		gatherer := s.config.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen binds the configured address. Run calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	s.listener = l
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv, l := s.http, s.listener
	s.mu.Unlock()

	logging.Info("Server listening",
		zap.String("addr", l.Addr().String()),
		zap.String("ws_path", s.config.WSPath),
		zap.Bool("metrics", s.config.Metrics),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(l)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown disconnects channel clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	// Hijacked WebSocket connections are not tracked by http.Server.
	s.hub.Close()

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		return srv.Close()
	}
	logging.Info("All connections closed gracefully")
	return nil
}

// logRequests logs every non-upgrade request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
