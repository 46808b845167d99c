// Package httpapi exposes the pairing session service over HTTP: code
// issuance, one-shot credential bundle download, and the token-gated
// admin surface.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pairgate/pairgate/internal/observability"
	"github.com/pairgate/pairgate/pkg/archive"
	"github.com/pairgate/pairgate/pkg/qr"
	"github.com/pairgate/pairgate/pkg/session"
)

// QRFunc renders a pairing code as image bytes in data-URL form. Pure;
// no state.
type QRFunc func(code string) (string, error)

// ServerOptions configures the HTTP facade.
type ServerOptions struct {
	Host            string
	Port            int
	SharedSecret    string
	AllowedIPs      []string
	LogFile         string
	PublicDir       string
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// Server is the pairing HTTP server.
type Server struct {
	options     ServerOptions
	server      *http.Server
	registry    *session.Registry
	packager    archive.Packager
	renderQR    QRFunc
	auth        *Authorizer
	rateLimiter *RateLimiter
	logger      zerolog.Logger
	startTime   time.Time

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates the HTTP facade over a session registry.
func NewServer(options ServerOptions, registry *session.Registry, packager archive.Packager, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.SharedSecret == "" {
		return nil, fmt.Errorf("shared secret is required")
	}
	if options.RateLimitMax == 0 {
		options.RateLimitMax = 15
	}
	if options.RateLimitWindow == 0 {
		options.RateLimitWindow = time.Minute
	}
	if registry == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if packager == nil {
		packager = archive.NewZipPackager()
	}

	return &Server{
		options:     options,
		registry:    registry,
		packager:    packager,
		renderQR:    qr.DataURL,
		auth:        NewAuthorizer(options.SharedSecret, options.AllowedIPs),
		rateLimiter: NewRateLimiter(options.RateLimitMax, options.RateLimitWindow),
		logger:      logger,
		startTime:   time.Now(),
	}, nil
}

// Router builds the HTTP handler. Exposed separately from Start so tests
// can drive it through httptest without binding a port.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, req)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(s.shutdownGuard)
		api.Use(s.authMiddleware)

		// Code issuance and the admin surface share the rate limit
		// window; the one-shot download does not.
		api.Group(func(limited chi.Router) {
			limited.Use(s.rateLimitMiddleware)
			limited.Get("/pair-code", s.handlePairCode)
			limited.Get("/sessions", s.handleSessions)
			limited.Get("/logs", s.handleLogs)
		})

		api.Get("/download-session", s.handleDownloadSession)
	})

	// Static UI, outside auth and rate limiting.
	if s.options.PublicDir != "" {
		if _, err := os.Stat(s.options.PublicDir); err == nil {
			r.Handle("/*", http.FileServer(http.Dir(s.options.PublicDir)))
		}
	}

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Router(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting pairing server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start pairing server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server, waiting out in-flight requests.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down pairing server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown pairing server: %w", err)
		}
	}

	s.logger.Info().Msg("Pairing server stopped")
	return nil
}

// shutdownGuard fails fast once shutdown has begun and tracks in-flight
// requests so Stop can wait them out.
func (s *Server) shutdownGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			respondError(w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).Seconds(),
		"sessions": s.registry.Len(),
	})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
