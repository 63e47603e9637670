// Package server exposes the engine over HTTP. Routes are deliberately
// thin: decode JSON, call the engine, map typed errors to status codes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/risk-engine/internal/engine"
)

// Config holds server configuration.
type Config struct {
	Port    int
	DevMode bool
	Engine  *engine.Engine
	Log     zerolog.Logger
}

// Server is the HTTP surface over the risk engine.
type Server struct {
	router *chi.Mux
	server *http.Server
	engine *engine.Engine
	log    zerolog.Logger
}

// New creates the HTTP server with middleware and routes configured.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		engine: cfg.Engine,
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// Frontier sweeps can run long; the timeout doubles as the solver's
	// cooperative cancellation deadline.
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/portfolios/{portfolioID}", func(r chi.Router) {
			r.Get("/risk", s.handleAnalyzeRisk)
			r.Get("/var", s.handleCalculateVaR)
			r.Post("/stress-test", s.handleStressTest)
			r.Post("/optimize", s.handleOptimize)
			r.Post("/frontier", s.handleFrontier)
			r.Post("/rebalance", s.handleRebalance)
		})
		r.Post("/risk-parity", s.handleRiskParity)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree, mostly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}
