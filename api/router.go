package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradeview/apperr"
)

// RouterConfig holds the knobs NewRouter needs from the service config.
type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	ExposeErrors   bool
}

// NewRouter builds the engine with recovery, request logging and the API
// routes registered.
func NewRouter(store Store, logger *zap.Logger, cfg RouterConfig) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(recovery(logger, cfg.ExposeErrors))
	engine.Use(requestLogger(logger))
	if cfg.RequestTimeout > 0 {
		engine.Use(requestTimeout(cfg.RequestTimeout))
	}

	engine.NoRoute(func(c *gin.Context) {
		fail(c, apperr.Newf(apperr.NotFound, "route", "no route for %s %s", c.Request.Method, c.Request.URL.Path), false)
	})

	h := &Handler{Store: store, Logger: logger, ExposeErrors: cfg.ExposeErrors}
	h.Register(engine)
	return engine
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// requestTimeout bounds every store call made while serving the request.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func recovery(logger *zap.Logger, expose bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		err := apperr.New(apperr.InternalServerError, "serve "+c.Request.URL.Path, fmt.Errorf("panic: %v", rec))
		logger.Error("handler panic", zap.Error(err), zap.Stack("stack"))
		fail(c, err, expose)
	})
}

// Serve runs srv until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err, open := <-errCh:
		if open {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
