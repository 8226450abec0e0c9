// Package server hosts the dashboard HTTP and websocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/n8kahl/copilotd/internal/server/handler"
	"github.com/n8kahl/copilotd/internal/server/middleware"
	"github.com/n8kahl/copilotd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the endpoint handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Status *handler.StatusHandler
	Tiles  *handler.TileHandler
	Trades *handler.TradeHandler
	Alerts *handler.AlertHandler
}

// Server is the dashboard-facing HTTP + websocket server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health is open; everything else sits behind auth.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	mux.HandleFunc("GET /api/tiles", handlers.Tiles.ListTiles)
	mux.HandleFunc("GET /api/tiles/{symbol}", handlers.Tiles.GetTile)

	mux.HandleFunc("GET /api/trades", handlers.Trades.ListTrades)
	mux.HandleFunc("POST /api/trades", handlers.Trades.LoadTrade)
	mux.HandleFunc("DELETE /api/trades", handlers.Trades.ClearTrades)
	mux.HandleFunc("DELETE /api/trades/{contractId}", handlers.Trades.RemoveTrade)
	mux.HandleFunc("POST /api/trades/{contractId}/alert", handlers.Trades.DispatchAlert)
	mux.HandleFunc("POST /api/trades/{contractId}/realert", handlers.Trades.ReAlert)
	mux.HandleFunc("POST /api/trades/{contractId}/close", handlers.Trades.CloseTrade)

	mux.HandleFunc("GET /api/alerts/history", handlers.Alerts.ListHistory)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks serving requests until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
