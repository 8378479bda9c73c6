package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/skip/config"
	"example.com/backstage/services/skip/internal/service"
)

// Server is the HTTP server for the API
type Server struct {
	cfg        config.Config
	router     *gin.Engine
	httpServer *http.Server
	lifecycle  *service.LifecycleService
	nrApp      *newrelic.Application
}

// NewServer creates a new API server
func NewServer(cfg config.Config, lifecycle *service.LifecycleService, nrApp *newrelic.Application) *Server {
	server := &Server{
		cfg:       cfg,
		router:    gin.New(),
		lifecycle: lifecycle,
		nrApp:     nrApp,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes()

	return server
}

// Router exposes the underlying engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware adds middleware to the router
func (s *Server) setupMiddleware() {
	if s.nrApp != nil {
		s.router.Use(nrgin.Middleware(s.nrApp))
	}

	// Add request ID middleware
	s.router.Use(RequestIDMiddleware())

	// Add CORS middleware
	if s.cfg.CorsEnabled {
		s.router.Use(CORSMiddleware(s.cfg.CorsOrigins))
	}

	// Add recovery middleware
	s.router.Use(gin.Recovery())

	// Add logging middleware
	s.router.Use(LoggingMiddleware())
}

// setupRoutes defines the API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	// API v1 group
	v1 := s.router.Group("/api/v1")

	// Skip registry routes
	v1.POST("/skips", s.createSkip)

	// Driver routes
	driverRoutes := v1.Group("/driver")
	{
		driverRoutes.GET("/scan", s.scanSkip)
		driverRoutes.GET("/skips/:qr/history", s.skipHistory)
		driverRoutes.POST("/deliver-empty", s.deliverEmpty)
		driverRoutes.POST("/relocate-empty", s.relocateEmpty)
		driverRoutes.POST("/collect-full", s.collectFull)
		driverRoutes.POST("/return-empty", s.returnEmpty)
	}

	// Waste transfer note routes
	v1.GET("/wtn/:id", s.getNote)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.HTTPServerAddress,
		Handler:      s.router,
		ReadTimeout:  s.cfg.HTTPServerTimeout,
		WriteTimeout: s.cfg.HTTPServerTimeout,
	}

	log.Info().Msgf("HTTP server starting on %s", s.cfg.HTTPServerAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
