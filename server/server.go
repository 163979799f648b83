package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arunmenon/text2sql/engine/pipeline"
	"github.com/arunmenon/text2sql/pkg/config"
	"github.com/arunmenon/text2sql/pkg/logger"
	"github.com/gin-gonic/gin"
)

// QueryProcessor runs one natural-language query through the pipeline.
type QueryProcessor interface {
	Process(ctx context.Context, tenantID, query string) (*pipeline.Response, error)
}

// Server is the HTTP front end of the pipeline.
type Server struct {
	cfg       config.ServerConfig
	processor QueryProcessor
	router    *gin.Engine
}

// New creates the server around a query processor.
func New(cfg config.ServerConfig, processor QueryProcessor) *Server {
	s := &Server{cfg: cfg, processor: processor}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware())
	RegisterRoutes(router, s.processor)
	return router
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is canceled or an interrupt arrives,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", "http://"+addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
