package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oszuidwest/zwfm-imageproxy/internal/service"
)

// Server is the HTTP server for the image transformation service.
type Server struct {
	service *service.ImageService
	version string
	server  *http.Server
}

// New creates a new Server instance.
func New(svc *service.ImageService, version string) *Server {
	return &Server{
		service: svc,
		version: version,
	}
}

// Handler builds the router. Order matters: authorization runs before the
// cache layer so cached responses are never served to unauthenticated
// callers, and the cache layer runs before the orchestrator so hits skip
// all transformation work.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	cop := http.NewCrossOriginProtection()
	router.Use(func(next http.Handler) http.Handler {
		return cop.Handler(next)
	})

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.recoverer)
	router.Use(middleware.Compress(5))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Endpoint not found")
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", "GET, POST")
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.Get("/", s.handleHealth)
	router.Get("/health", s.handleHealth)

	router.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(middleware.Timeout(s.service.Config().API.GetRequestTimeout()))
		r.Use(s.cacheMiddleware)

		for _, path := range []string{"/image/to/{format}"} {
			r.Get(path, s.handleConvert)
			r.Post(path, s.handleConvert)
		}

		for _, path := range []string{"/thumb", "/image/thumb"} {
			r.Get(path, s.handleThumbnail)
			r.Post(path, s.handleThumbnail)
		}
	})

	return router
}

// Start initializes and starts the HTTP server on the specified port.
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// authMiddleware validates the caller's API key before any body is read.
// A server with authorization enabled but no configured keys is
// misconfigured, which is a distinct failure from a bad credential.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := s.service.Config()
		if !cfg.API.GetAuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		if len(cfg.API.Keys) == 0 {
			slog.Error("Authentication impossible", "reason", "no_api_keys_configured")
			respondError(w, http.StatusInternalServerError,
				"API key not configured. Set API_KEY in the environment or keys in the config file.")
			return
		}

		apiKey := r.Header.Get(cfg.API.GetKeyHeader())

		if !s.isValidAPIKey(apiKey) {
			slog.Warn("Authentication failed",
				"reason", "invalid_api_key",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr)

			respondError(w, http.StatusUnauthorized, "Unauthorized: invalid or missing API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isValidAPIKey accepts any of the configured keys, supporting rotation.
func (s *Server) isValidAPIKey(key string) bool {
	return key != "" && slices.Contains(s.service.Config().API.Keys, key)
}

// recoverer converts panics into a generic JSON 500 instead of leaking
// internals to the transport layer.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil && rvr != http.ErrAbortHandler {
				slog.Error("Request handler panicked",
					"path", r.URL.Path,
					"method", r.Method,
					"panic", rvr)
				respondError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
