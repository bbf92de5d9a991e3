package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/tradedash/crypto_bot_dash/internal/usecase"
)

type Server struct {
	router *http.ServeMux
	server *http.Server
	engine *usecase.Engine
	logger *zap.Logger
}

func NewServer(port int, engine *usecase.Engine, logger *zap.Logger) *Server {
	s := &Server{
		router: http.NewServeMux(),
		engine: engine,
		logger: logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Bots
	s.router.HandleFunc("GET /api/bots", s.handleListBots)
	s.router.HandleFunc("POST /api/bots", s.handleAddBot)
	s.router.HandleFunc("GET /api/bots/{id}", s.handleGetBot)
	s.router.HandleFunc("DELETE /api/bots/{id}", s.handleDeleteBot)

	// Positions
	s.router.HandleFunc("GET /api/positions", s.handleListPositions)
	s.router.HandleFunc("POST /api/positions/{id}/activate", s.handleActivatePosition)
	s.router.HandleFunc("POST /api/positions/{id}/close", s.handleClosePosition)
	s.router.HandleFunc("DELETE /api/positions/{id}", s.handleDeletePosition)

	// Status
	s.router.HandleFunc("GET /api/status", s.handleStatus)
	s.router.HandleFunc("GET /api/notifications", s.handleNotifications)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
