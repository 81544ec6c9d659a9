package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptodata/internal/config"
	"cryptodata/internal/extract"
	"cryptodata/internal/logging"
	"cryptodata/internal/request"
)

// Server exposes the extraction pipeline over HTTP
type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	log        *logging.Logger
}

// NewServer creates the API server around a wired pipeline
func NewServer(cfg *config.Config, pipeline *extract.Pipeline, registry *extract.Registry, defaults request.Defaults, log *logging.Logger) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logging.Nop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	server := &Server{
		config: cfg,
		router: router,
		log:    log,
		handlers: &Handlers{
			Series:  NewSeriesHandler(pipeline, defaults, log),
			Catalog: NewCatalogHandler(registry),
		},
	}
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server
}

// Handlers groups the API handlers
type Handlers struct {
	Series  *SeriesHandler
	Catalog *CatalogHandler
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.config.Metrics.Enabled {
		s.router.GET(s.config.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/series", s.handlers.Series.Extract)
		v1.GET("/catalog/fields", s.handlers.Catalog.Fields)
		v1.GET("/catalog/tickers", s.handlers.Catalog.Tickers)
		v1.GET("/catalog/providers", s.handlers.Catalog.Providers)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"app":     s.config.App.Name,
		"version": s.config.App.Version,
	})
}

// Start blocks serving HTTP until Shutdown is called
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs each request with method, path and status
func requestLogger(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.WithFields(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("request handled")
	}
}
