package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fmueller/whisper-api/internal/upload"
	"github.com/fmueller/whisper-api/internal/whisper"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

type Options struct {
	// Engine and Store are required.
	Engine whisper.Engine
	Store  *upload.Store

	// Language is passed to the engine unless the request overrides it.
	Language string
	// UploadLimit caps request bodies, e.g. "100M". Empty disables the cap.
	UploadLimit string
	// Registry enables /metrics when set.
	Registry *prometheus.Registry
	Logger   *zap.Logger
}

type Server struct {
	echo     *echo.Echo
	engine   whisper.Engine
	store    *upload.Store
	language string
	metrics  *metrics
	logger   *zap.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("transcription engine is required")
	}
	if opts.Store == nil {
		return nil, errors.New("upload store is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		echo:     echo.New(),
		engine:   opts.Engine,
		store:    opts.Store,
		language: opts.Language,
		logger:   logger,
	}

	if opts.Registry != nil {
		m, err := newMetrics(opts.Registry)
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(s.accessLog)
	s.echo.Use(middleware.Recover())
	if s.metrics != nil {
		s.echo.Use(s.metrics.middleware)
	}
	if opts.UploadLimit != "" {
		s.echo.Use(middleware.BodyLimit(opts.UploadLimit))
	}

	s.routes(opts.Registry)
	return s, nil
}

func (s *Server) routes(registry *prometheus.Registry) {
	s.echo.GET("/", s.home)
	s.echo.POST("/transcribe", s.transcribe)

	ok := func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
	s.echo.GET("/healthz", ok)
	s.echo.GET("/readyz", ok)

	if registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metricsHandler(registry)))
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()

	s.logger.Info("listening", zap.String("addr", addr), zap.String("upload_dir", s.store.Dir()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		started := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		s.logger.Info("http request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Int64("bytes_in", req.ContentLength),
			zap.Duration("latency", time.Since(started)),
		)
		return nil
	}
}
