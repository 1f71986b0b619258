// Package web provides the HTTP surface for Prepzo: health checks,
// room token issuance, and resume uploads from the frontend.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/prepzo/go-prepzo/pkg/resume"
)

// ServerConfig holds the server's dependencies.
type ServerConfig struct {
	// Addr is the bind address, e.g. ":8181".
	Addr string

	// TokenSecret signs room access tokens.
	TokenSecret string

	// Resumes stores uploaded resume files. Nil disables the upload
	// endpoint.
	Resumes *resume.Service

	// Logger for request-level events.
	Logger *slog.Logger
}

// Server is the Prepzo HTTP server.
type Server struct {
	app    *fiber.App
	addr   string
	secret string
	resume *resume.Service
	logger *slog.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:   cfg.Addr,
		secret: cfg.TokenSecret,
		resume: cfg.Resumes,
		logger: logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Prepzo API",
		DisableStartupMessage: true,
		BodyLimit:             resume.MaxUploadBytes + 1<<20,
	})

	app.Use(cors.New())

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Post("/token", s.handleToken)
	api.Post("/resume/:room", s.handleResumeUpload)

	s.app = app
	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("http server stopped", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
