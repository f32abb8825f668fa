// Package api exposes the HTTP trigger and status surface. The scheduler
// command mounts it next to the tick loop; it has no state of its own.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/storesync/internal/logger"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server wraps the gin router and its http.Server.
type Server struct {
	httpServer *http.Server
	log        logger.Interface
}

// NewServer builds the router and binds the handlers.
func NewServer(addr string, sources *SourcesHandler, log logger.Interface) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sources/:id/crawl", sources.TriggerCrawl)
		v1.GET("/sources/:id/status", sources.GetStatus)
		v1.GET("/sources/:id/runs", sources.ListRuns)
		v1.POST("/tenants/:id/crawl", sources.TriggerTenantCrawl)
		v1.GET("/scheduler/metrics", sources.GetMetrics)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log.WithComponent("api"),
	}
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("API server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("API server shutting down")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// requestLogger logs one line per request.
func requestLogger(log logger.Interface) gin.HandlerFunc {
	l := log.WithComponent("api")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug("request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
