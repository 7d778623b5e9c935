package server

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/notifier"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Server exposes the session registry over HTTP and streams transcript events over WebSocket.
type Server struct {
	app      *fiber.App
	registry *session.Registry
	hub      *notifier.Hub
	decoders audio.DecoderFactory
	addr     string
}

func NewServer(registry *session.Registry, hub *notifier.Hub, decoders audio.DecoderFactory, addr string) *Server {
	s := &Server{
		registry: registry,
		hub:      hub,
		decoders: decoders,
		addr:     addr,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "livescribe",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)

	api := s.app.Group("/api/transcribe")
	api.Post("/start", s.handleStart)
	api.Post("/stop/:sessionId", s.handleStop)
	api.Get("/sessions/:sessionId", s.handleSession)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleStream))
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	slog.Info("http server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

func (s *Server) Serve(ln net.Listener) error {
	slog.Info("http server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", c.Method(), "path", c.Path())
	}
	return c.Status(code).JSON(errorResponse{Success: false, Error: err.Error()})
}
