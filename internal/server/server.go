package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/coreerp/assistant-gateway/internal/telemetry"
)

type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

func New(port int, logger *slog.Logger, handler *Handler) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, telemetry.ServiceName)
	})

	// Probes bypass the identity check.
	r.Get("/health", handler.handleHealth)

	r.Group(func(g chi.Router) {
		g.Use(RequireIdentity)

		// Streaming responses outlive any sane per-request deadline, so
		// the timeout applies only to the buffered routes.
		g.Group(func(b chi.Router) {
			b.Use(RequestTimeout(2 * time.Minute))
			b.Post("/question", handler.handleQuestion)
			b.Get("/assistants", handler.handleListAssistants)
			b.Post("/assistants/sync", handler.handleSync)
		})
		g.Post("/aquestion", handler.handleAsyncQuestion)
	})

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", s.Port), s.Router)
}
