package server

import (
	"time"

	"cohost/internal/cache"
	"cohost/internal/config"
	"cohost/internal/database"
	"cohost/internal/handlers"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Server represents the application server
type Server struct {
	echo        *echo.Echo
	store       *database.Store
	config      *config.Config
	logger      zerolog.Logger
	threadCache *cache.Cache
}

// New creates a new server instance
func New(cfg *config.Config, store *database.Store, logger zerolog.Logger) *Server {
	return &Server{
		config:      cfg,
		store:       store,
		logger:      logger,
		threadCache: cache.New(),
	}
}

// zerologMiddleware creates a zerolog-based logging middleware for Echo
func (s *Server) zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			s.logger.Info().
				Str("method", req.Method).
				Str("uri", req.RequestURI).
				Str("remote_ip", c.RealIP()).
				Int("status", res.Status).
				Int64("latency_ms", time.Since(start).Milliseconds()).
				Str("user_agent", req.UserAgent()).
				Msg("HTTP request")

			return err
		}
	}
}

// Initialize sets up the Echo framework with middleware and routes
func (s *Server) Initialize() {
	s.echo = echo.New()

	s.echo.Use(s.zerologMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	s.echo.HideBanner = true

	s.setupRoutes()
}

// setupRoutes configures all the application routes
func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Health endpoints at root level for monitoring
	s.echo.GET("/health", handlers.HealthHandler(s.config.Version))
	s.echo.GET("/health/detailed", handlers.DetailedHealthHandler(s.store.DB(), s.store))

	api.POST("/messages/send", handlers.SendMessageHandler(s.store))
	api.POST("/ai/webhook", handlers.AIWebhookHandler(s.store))
	api.GET("/threads", handlers.ListThreadsHandler(s.store, s.threadCache))
	api.GET("/threads/:id/messages", handlers.ThreadMessagesHandler(s.store))
	api.POST("/admin/backfill", handlers.BackfillHandler(s.config))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Port).Msg("Server starting")
	return s.echo.Start(":" + s.config.Port)
}
