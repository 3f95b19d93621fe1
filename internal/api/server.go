// Package api exposes the alert store and monitor over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pricewatch/internal/app"
	"pricewatch/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP control surface.
type Server struct {
	engine *gin.Engine
	logger zerolog.Logger
}

// NewServer builds the router for a.
func NewServer(a *app.App, logger zerolog.Logger) *Server {
	logger = logging.WithComponent(logger, "api")

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	(&HealthHandler{}).Register(engine)
	(&AlertHandler{Store: a.Store}).Register(engine)
	(&MonitorHandler{Monitor: a.Monitor}).Register(engine)
	(&PriceHandler{Prices: a.Prices}).Register(engine)

	return &Server{engine: engine, logger: logger}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLogger := logger.With().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), reqLogger))

		c.Next()

		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		logging.LogAPICall(logger, c.Request.Method, c.FullPath(), time.Since(start), err)
	}
}
