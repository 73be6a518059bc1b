package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/mikey/phishguard/internal/config"
	"go.uber.org/zap"
)

// Server is the PhishGuard HTTP API
type Server struct {
	server *http.Server
	router chi.Router
	logger *zap.Logger
}

// NewServer wires the routes and middleware. metricsHandler may be nil.
func NewServer(
	cfg config.ServerConfig,
	detector Detector,
	analytics Analytics,
	metricsHandler http.Handler,
	logger *zap.Logger,
) *Server {
	h := &handlers{
		detector:    detector,
		analytics:   analytics,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		serviceName: cfg.ServiceName,
		logger:      logger,
		now:         time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)

		r.Route("/detect", func(r chi.Router) {
			r.With(recoverWith(emailFailure, logger)).Post("/email", h.detectEmail)
			r.With(recoverWith(urlFailure, logger)).Post("/url", h.detectURL)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/dashboard", h.dashboard)
			r.Get("/recent", h.recent)
		})
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	return &Server{
		server: &http.Server{
			Addr:              cfg.ListenAddress,
			Handler:           r,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		router: r,
		logger: logger,
	}
}

// Handler returns the root handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens and serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API", zap.String("address", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping HTTP API")
	return s.server.Shutdown(ctx)
}
