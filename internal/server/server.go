// Package server exposes the extraction pipeline over an HTTP JSON API:
// bearer-token auth, the extract/consolidate operations, and the export and
// stats conveniences.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/RaphaelThineyUE/radiology-insight/internal/common"
	"github.com/RaphaelThineyUE/radiology-insight/internal/consolidate"
	"github.com/RaphaelThineyUE/radiology-insight/internal/export"
	"github.com/RaphaelThineyUE/radiology-insight/internal/pipeline"
	"github.com/RaphaelThineyUE/radiology-insight/internal/repository"
)

// PingFunc probes the backing store for the health endpoint.
type PingFunc func(ctx context.Context) error

// Server bundles the handler dependencies.
type Server struct {
	cfg      *common.Config
	docs     repository.DocumentStore
	logs     repository.LogStore
	pipe     *pipeline.Orchestrator
	composer *consolidate.Composer
	exporter *export.Service
	pinger   PingFunc
	log      *slog.Logger
}

func New(
	cfg *common.Config,
	docs repository.DocumentStore,
	logs repository.LogStore,
	pipe *pipeline.Orchestrator,
	composer *consolidate.Composer,
	exporter *export.Service,
	pinger PingFunc,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		docs:     docs,
		logs:     logs,
		pipe:     pipe,
		composer: composer,
		exporter: exporter,
		pinger:   pinger,
		log:      log,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	router.GET("/healthz", s.handleHealthz)

	api := router.Group("/api/v1")
	{
		api.POST("/auth/login", s.handleLogin)
	}

	protected := api.Group("/")
	protected.Use(AuthMiddleware(&s.cfg.Auth))
	{
		protected.POST("/documents", s.handleCreateDocument)
		protected.POST("/extract", s.handleExtract)
		protected.POST("/consolidate", s.handleConsolidate)
		protected.GET("/extractions/export", s.handleExport)
		protected.GET("/stats", s.handleStats)
	}

	return router
}

// requestLogger emits one access log line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}
