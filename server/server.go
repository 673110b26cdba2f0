// Package server hosts the chat API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/hrygo/chatops/internal/profile"
	"github.com/hrygo/chatops/plugin/ai/timeout"
	"github.com/hrygo/chatops/server/middleware"
	apiv1 "github.com/hrygo/chatops/server/router/api/v1"
)

// maxBodySize caps request bodies.
const maxBodySize = "1M"

// Server hosts the HTTP API.
type Server struct {
	Profile *profile.Profile

	echoServer  *echo.Echo
	rateLimiter *middleware.RateLimiter
}

// NewServer creates a Server with middleware and routes registered.
func NewServer(p *profile.Profile, service *apiv1.APIV1Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.Debug = p.IsDev()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = timeout.HTTPClientTimeout
	// A turn may run up to TurnTimeout before the response is written.
	e.Server.WriteTimeout = timeout.TurnTimeout + 10*time.Second

	s := &Server{
		Profile:     p,
		echoServer:  e,
		rateLimiter: middleware.NewRateLimiter(p.RateLimitRPS, p.RateLimitBurst),
	}

	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit(maxBodySize))
	e.Use(middleware.RequestContext(logger, service.Metrics))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))

	service.RegisterRoutes(e, middleware.RateLimit(s.rateLimiter))

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Start serves until Shutdown is called or ctx is done. A clean shutdown returns nil.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Profile.ListenAddr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener. It also prunes idle rate limiter entries.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.echoServer.Listener = listener
	slog.Info("chatops server listening", "addr", listener.Addr().String(), "mode", s.Profile.Mode)

	go s.pruneLimiters(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout.ShutdownTimeout)
		defer cancel()
		s.Shutdown(shutdownCtx)
	}()

	if err := s.echoServer.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight turns.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	slog.Info("chatops server stopped")
}

func (s *Server) pruneLimiters(ctx context.Context) {
	ticker := time.NewTicker(timeout.SessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.rateLimiter.Prune(timeout.SessionCleanupInterval); n > 0 {
				slog.Debug("pruned idle rate limiters", "count", n)
			}
		}
	}
}
