package proxy

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/zhengjr9/agent-studio/internal/config"
	apierrors "github.com/zhengjr9/agent-studio/internal/errors"
	"github.com/zhengjr9/agent-studio/internal/gateway"
)

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
}

// New constructs a Server from the given config.
func New(cfg *config.Config, d *gateway.Dispatcher) *Server {
	h := &handlers{d: d, cfg: cfg}

	r := mux.NewRouter()
	// Full paths on the root router: routes on a path-prefix subrouter lose
	// the method-mismatch result and answer 404 instead of 405.
	r.HandleFunc("/api/chat", h.chat).Methods(http.MethodPost)
	r.HandleFunc("/api/stream", h.stream).Methods(http.MethodPost)
	r.HandleFunc("/api/enhance", h.enhance).Methods(http.MethodPost)
	r.HandleFunc("/api/review", h.review).Methods(http.MethodPost)
	r.HandleFunc("/api/models", h.models).Methods(http.MethodGet)
	r.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/api/config", h.config).Methods(http.MethodGet)

	if cfg.StaticDir != "" {
		// The /api/ exclusion must be the first matcher, or a matching prefix
		// clears a pending 405 from the API routes.
		r.MatcherFunc(notAPI).PathPrefix("/").Methods(http.MethodGet).
			Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteJSONError(w, http.StatusNotFound, "not found: "+r.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed: "+r.Method)
	})

	var handler http.Handler = r
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(handler)
	handler = recoveryMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:        cfg.ListenAddr,
			Handler:     handler,
			ReadTimeout: 30 * time.Second,
			// Streams are bounded by the upstream stream timeout.
			WriteTimeout: cfg.StreamTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins listening and blocks until the server is stopped.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the underlying http.Handler (for use in tests with httptest.NewServer).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func notAPI(r *http.Request, _ *mux.RouteMatch) bool {
	return !strings.HasPrefix(r.URL.Path, "/api/")
}
