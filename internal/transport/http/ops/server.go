// Package opshttp exposes a read-only operational HTTP surface for the
// ingestion daemon: health, progress, checkpoints, symbols and recent
// runs. It serves operators and monitoring, not market data consumers.
package opshttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"marketsync/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server wraps the gin engine and its listener lifecycle.
type Server struct {
	addr   string
	router *gin.Engine
	srv    *http.Server
}

// ServerConfig carries the handler dependencies.
type ServerConfig struct {
	Addr   string
	Engine EngineReader
	Store  StoreReader
	RunLog RunLogReader
}

// NewServer builds the ops HTTP server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil || cfg.Store == nil {
		return nil, errors.New("ops http server requires engine and store readers")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8087"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		if !cfg.Engine.HealthCheck(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	opsRouter := NewRouter(cfg.Engine, cfg.Store, cfg.RunLog)
	opsRouter.Register(router.Group("/api/ops"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("ops http: listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Truncate(time.Millisecond))
	}
}
