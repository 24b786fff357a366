// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server is the web front-end: a single page plus a small JSON API
// for building a topic session and asking questions against it.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pdiddy/research-chat/internal/logging"
	"github.com/pdiddy/research-chat/internal/metrics"
	"github.com/pdiddy/research-chat/internal/pipeline"
	"github.com/pdiddy/research-chat/internal/sessions"
)

// SessionCookie carries the caller's session id.
const SessionCookie = "rc_session"

//go:embed templates/index.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Builder turns a topic into a ready session.
type Builder interface {
	Build(ctx context.Context, topic string) (*pipeline.Result, error)
}

// Options configures a Server.
type Options struct {
	// SessionTTL expires sessions idle for longer than this. Zero keeps
	// sessions until deleted.
	SessionTTL time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server wires the HTTP routes to the pipeline and the session registry.
type Server struct {
	echo     *echo.Echo
	builder  Builder
	registry *sessions.Registry
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New builds the echo instance and registers every route.
func New(b Builder, reg *sessions.Registry, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		echo:     echo.New(),
		builder:  b,
		registry: reg,
		ttl:      opts.SessionTTL,
		metrics:  opts.Metrics,
		logger:   logger,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.GET("/", s.handleIndex)
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	api := e.Group("/api/sessions")
	api.POST("", s.handleCreate)
	api.GET("/:id", s.handleGet)
	api.POST("/:id/ask", s.handleAsk)
	api.DELETE("/:id", s.handleDelete)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr until ctx is cancelled, sweeping idle sessions in the
// background. On return every session has been closed.
func (s *Server) Run(ctx context.Context, addr string) error {
	defer s.registry.CloseAll()

	if s.ttl > 0 {
		go s.sweep(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- s.echo.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval(s.ttl))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.registry.Sweep(s.ttl)
		}
	}
}

// sweepInterval checks a few times per TTL, between once a second and
// once every five minutes.
func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Second), 5*time.Minute)
}

func (s *Server) handleIndex(c echo.Context) error {
	var buf bytes.Buffer
	err := pageTmpl.Execute(&buf, struct{ Title, Placeholder string }{
		Title:       "Medical Research Chatbot (RAG)",
		Placeholder: "e.g., Sleep and Memory Consolidation",
	})
	if err != nil {
		return fmt.Errorf("rendering page: %w", err)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// handleError writes every error as {"error": "..."} with a status derived
// from the error chain. Upstream failures get a fixed message; their detail
// is only logged.
func (s *Server) handleError(err error, c echo.Context) {
	code := statusFor(err)
	msg := publicMessage(code, err)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = http.StatusText(code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}

	req := c.Request()
	level := slog.LevelWarn
	if code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(req.Context(), level, "request failed",
		"status", code, "method", req.Method, "path", req.URL.Path, "error", err)

	if c.Response().Committed {
		return
	}
	if req.Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}

// publicMessage is the client-facing text for err.
func publicMessage(code int, err error) string {
	switch {
	case code == http.StatusGatewayTimeout:
		return "upstream service timed out"
	case code >= http.StatusInternalServerError:
		return "upstream service failed"
	default:
		return err.Error()
	}
}
