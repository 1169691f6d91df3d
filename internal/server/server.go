// Package server exposes Noterer over HTTP: conversation endpoints driving
// the confirmation cycle, plus CRUD for the knowledge graph.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server assembles the router and middleware chain. Listening is the
// entrypoint's job; it owns the http.Server for graceful shutdown.
type Server struct {
	Router *chi.Mux
	logger *slog.Logger
}

func New(logger *slog.Logger) *Server {
	r := chi.NewRouter()

	// Apply middleware in order
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(60 * time.Second))
	r.Use(middleware.Recoverer)

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "noterer")
	})

	return &Server{
		Router: r,
		logger: logger,
	}
}
