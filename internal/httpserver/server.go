package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is satisfied by *pgxpool.Pool directly and by a *redis.Client
// through platform.RedisPinger; readiness checks only need to know the
// backing store answers within the request's deadline.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the common HTTP scaffolding shared by the Hub and Pod binaries:
// middleware, health/readiness/metrics endpoints, and a bare router that
// domain handlers mount onto.
type Server struct {
	Router    *chi.Mux
	Logger    *slog.Logger
	Metrics   *prometheus.Registry
	startedAt time.Time
	checks    map[string]Pinger
}

// NewServer creates an HTTP server with the standard middleware chain and
// health/readiness/metrics endpoints. checks names the dependencies
// /readyz pings (e.g. "database", "redis").
func NewServer(allowedOrigins []string, logger *slog.Logger, metricsReg *prometheus.Registry, checks map[string]Pinger) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		Metrics:   metricsReg,
		startedAt: time.Now(),
		checks:    checks,
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.Logger.Error("readiness check failed", "dependency", name, "error", err)
			RespondError(w, http.StatusServiceUnavailable, "unavailable", name+" not ready")
			return
		}
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
