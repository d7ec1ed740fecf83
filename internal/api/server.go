package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terra-clan/judge-engine/internal/config"
	"github.com/terra-clan/judge-engine/internal/engine"
	"github.com/terra-clan/judge-engine/internal/health"
)

// Server represents the HTTP API server
type Server struct {
	config  config.ServerConfig
	router  *chi.Mux
	engine  *engine.Engine
	health  *health.Registry
	metrics http.Handler
}

// NewServer creates a new API server.
// metricsHandler defaults to the Prometheus default gatherer.
func NewServer(
	cfg config.ServerConfig,
	eng *engine.Engine,
	registry *health.Registry,
	metricsHandler http.Handler,
) *Server {
	if registry == nil {
		registry = health.NewRegistry()
	}
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	s := &Server{
		config:  cfg,
		engine:  eng,
		health:  registry,
		metrics: metricsHandler,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/hackathons/{hackathonID}", func(r chi.Router) {
			r.Get("/overview", s.handleOverview)
			r.Post("/distribute", s.handleDistribute)

			r.Route("/judges", func(r chi.Router) {
				r.Get("/", s.handleListAssignments)
				r.Post("/", s.handleInviteJudge)

				r.Route("/{email}", func(r chi.Router) {
					r.Post("/activate", s.handleActivateJudge)
					r.Get("/view", s.handleJudgeView)
					r.Get("/consistency", s.handleConsistency)
				})
			})
		})

		r.Route("/assignments/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetAssignment)
			r.Delete("/", s.handleRemoveAssignment)
			r.Post("/complete", s.handleCompleteAssignment)
			r.Post("/scopes", s.handleBindScope)
			r.Delete("/scopes", s.handleUnbindScope)
			r.Post("/submissions", s.handleAssign)
			r.Post("/unassign", s.handleUnassign)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
