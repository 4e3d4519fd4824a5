// Package server is a local stand-in for the lesion analysis service. It
// speaks the same /upload and /analyze contract so the client can be run
// end to end without the real model.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/dermascan-cli/internal/config"
	"github.com/HaiFongPan/dermascan-cli/internal/store"
)

// Server wires the handlers onto an echo instance
type Server struct {
	echo       *echo.Echo
	cfg        config.ServerConfig
	store      store.Store
	classifier Classifier
	newID      func() string
}

// Option configures a Server
type Option func(*Server)

// WithClassifier replaces the default ColorClassifier
func WithClassifier(c Classifier) Option {
	return func(s *Server) { s.classifier = c }
}

// WithIDGenerator replaces the uuid generator used for stored names
func WithIDGenerator(gen func() string) Option {
	return func(s *Server) { s.newID = gen }
}

// New creates the server and registers its routes
func New(cfg config.ServerConfig, st store.Store, opts ...Option) *Server {
	s := &Server{
		echo:       echo.New(),
		cfg:        cfg,
		store:      st,
		classifier: ColorClassifier{},
		newID:      newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logrus.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency,
			}).Info("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.MaxUploadMB > 0 {
		e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", cfg.MaxUploadMB)))
	}

	// the browser client of the real service is served from another origin
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.POST("/upload", s.handleUpload)
	s.echo.POST("/analyze", s.handleAnalyze)
	s.echo.GET("/images", s.handleListImages)
}

// Handler exposes the router, mainly for httptest
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", s.cfg.Addr).Info("analysis service listening")
		errCh <- s.echo.Start(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logrus.Info("shutting down analysis service")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
