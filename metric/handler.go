package metric

import (
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raceant/scull/errors"
)

// Server represents the metrics HTTP server
type Server struct {
	port      int
	path      string
	server    *http.Server
	registry  *MetricsRegistry
	extra     map[string]http.Handler
	tlsConfig *tls.Config
	mu        sync.Mutex // protects server, extra and tlsConfig
}

// NewServer creates a new metrics server with the provided registry
func NewServer(port int, path string, registry *MetricsRegistry) *Server {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}

	return &Server{
		port:     port,
		path:     path,
		registry: registry,
		extra:    make(map[string]http.Handler),
	}
}

// Handle adds a route next to the metrics endpoint. Routes added after
// Start take effect on the next Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[pattern] = handler
}

// SetTLSConfig makes the next Start serve HTTPS. Nil reverts to HTTP.
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tlsConfig = cfg
}

// Handler builds the HTTP handler serving metrics and the extra routes
func (s *Server) Handler() (http.Handler, error) {
	if s.registry == nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("nil registry"),
			"Server", "Handler", "metrics registry not provided")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))

	_, hasHealth := s.extra["/health"]
	if !hasHealth {
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
	}
	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}

	return mux, nil
}

// Start runs the metrics HTTP server until Stop is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("server already running"),
			"Server", "Start", "cannot start server that is already running")
	}

	handler, err := s.Handler()
	if err != nil {
		s.mu.Unlock()
		return err
	}

	srv := &http.Server{
		Addr:      fmt.Sprintf(":%d", s.port),
		Handler:   handler,
		TLSConfig: s.tlsConfig,
	}
	s.server = srv
	s.mu.Unlock()

	serve := srv.ListenAndServe
	if srv.TLSConfig != nil {
		// Certificates come from TLSConfig.
		serve = func() error { return srv.ListenAndServeTLS("", "") }
	}
	if err := serve(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("failed to start server on port %d", s.port))
	}

	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		err := s.server.Close()
		s.server = nil
		if err != nil {
			return errors.WrapTransient(err, "Server", "Stop",
				"failed to stop HTTP server")
		}
	}
	return nil
}

// Address returns the server address
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	scheme := "http"
	if s.tlsConfig != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://localhost:%d%s", scheme, s.port, s.path)
}
