// Package server assembles the HTTP API: routing, middleware and lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PatrionDigital/tradewire/internal/server/handler"
	"github.com/PatrionDigital/tradewire/internal/server/middleware"
	"github.com/PatrionDigital/tradewire/internal/server/ws"
)

// Config holds the HTTP listener settings.
type Config struct {
	Port         int
	APIKey       string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

// Handlers aggregates the API's resource handlers. Hub is optional; without
// it the /ws route is not registered.
type Handlers struct {
	Execute       *handler.ExecuteHandler
	Audit         *handler.AuditHandler
	Notifications *handler.NotificationHandler
	Health        *handler.HealthHandler
	Hub           *ws.Hub
}

// Server is the HTTP front of the pipeline.
type Server struct {
	httpServer *http.Server
	cfg        Config
	logger     *slog.Logger
}

// NewServer builds the router and middleware chain. Routes use Go 1.22
// method patterns.
func NewServer(cfg Config, h Handlers, logger *slog.Logger) *Server {
	cfg = cfg.withDefaults()
	logger = logger.With(slog.String("component", "http_server"))

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/orders/execute", h.Execute.Execute)
	mux.HandleFunc("DELETE /api/orders/{venue}/{id}", h.Execute.Cancel)
	mux.HandleFunc("GET /api/executions/{id}", h.Execute.Status)
	mux.HandleFunc("GET /api/executions/{id}/audit", h.Audit.Trail)
	mux.HandleFunc("GET /api/audit", h.Audit.Query)
	mux.HandleFunc("GET /api/notifications", h.Notifications.History)
	mux.HandleFunc("GET /api/notifications/preferences/{user}", h.Notifications.GetPreferences)
	mux.HandleFunc("PUT /api/notifications/preferences/{user}", h.Notifications.UpdatePreferences)
	mux.HandleFunc("GET /api/platforms/{venue}/available", h.Execute.Available)
	mux.HandleFunc("GET /api/health", h.Health.Health)
	if h.Hub != nil {
		mux.HandleFunc("GET /ws", h.Hub.HandleWS)
	}

	var root http.Handler = mux
	root = corsMiddleware(cfg.CORSOrigins)(root)
	root = middleware.Logging(logger)(root)
	root = middleware.APIKeyAuth(cfg.APIKey)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Start serves until Shutdown is called. It blocks.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen on %s: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the assembled handler chain, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// corsMiddleware allows the configured origins. An empty list allows any
// origin, which suits a dashboard served from localhost during development.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (len(allowed) == 0 || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
