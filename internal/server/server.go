package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/zenboard/internal/api/ws"
	"github.com/gosuda/zenboard/internal/config"
	"github.com/gosuda/zenboard/internal/metrics"
	"github.com/gosuda/zenboard/internal/router"
	"github.com/gosuda/zenboard/internal/server/middleware"
	redisstore "github.com/gosuda/zenboard/internal/store/redis"
)

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	pubsub     *redisstore.PubSub // nil when Redis is not configured
}

// New creates a Server with all routes wired.
// pubsub may be nil, in which case the observer feed is not mounted.
// staticAssets may be nil; when provided, it is served on all unmatched
// routes with an index.html fallback.
func New(ctx context.Context, cfg *config.Config, boards *router.Router, pubsub *redisstore.PubSub, m *metrics.Metrics, staticAssets fs.FS) *Server {
	r := chi.NewRouter()

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	var sub ws.Subscriber
	if pubsub != nil {
		sub = pubsub
	}
	hub := ws.NewHub(boards, sub, m, ws.Options{
		SendBuffer:     cfg.WebSocket.SendBuffer,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		ReadLimit:      cfg.WebSocket.ReadLimit,
		EventRate:      cfg.WebSocket.EventRate,
		EventBurst:     cfg.WebSocket.EventBurst,
		OriginPatterns: cfg.Server.CORSOrigins,
	})

	s := &Server{
		router: r,
		pubsub: pubsub,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			BaseContext:  func(net.Listener) context.Context { return ctx },
		},
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, cfg.RateLimit.Rate, cfg.RateLimit.Burst))

		apiConfig := huma.DefaultConfig("Zenboard API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, boards)
	})

	r.Route("/ws", func(r chi.Router) {
		registerWSRoutes(r, hub)
	})

	r.Handle("/metrics", m.Handler())

	r.Get("/healthz", s.healthz)

	// Must be registered last so API and WebSocket routes take priority.
	if staticAssets != nil {
		r.NotFound(spaFileServer(staticAssets).ServeHTTP)
		log.Info().Msg("static client enabled")
	}

	return s
}

// healthz reports 200 while the process serves. With Redis configured, an
// unreachable Redis degrades the status to 503 since the mirror is failing.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.pubsub != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pubsub.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health check: redis")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded","redis":"unreachable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","redis":"ok"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server. Hijacked WebSocket connections
// are not tracked by net/http; they end when the context given to New does.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
