// Package v1 serves the chat API over HTTP JSON.
package v1

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatops/plugin/ai/agent"
	"github.com/hrygo/chatops/plugin/ai/session"
	aierrors "github.com/hrygo/chatops/server/internal/errors"
	"github.com/hrygo/chatops/server/internal/observability"
	"github.com/hrygo/chatops/server/middleware"
)

// APIV1Service wires the orchestrator and the session manager to HTTP handlers.
type APIV1Service struct {
	Orchestrator *agent.Orchestrator
	Sessions     *session.Manager
	Metrics      *observability.Metrics
	AgentMetrics *agent.Metrics
}

// NewAPIV1Service creates the service. metrics may be nil.
func NewAPIV1Service(orchestrator *agent.Orchestrator, sessions *session.Manager, metrics *observability.Metrics, agentMetrics *agent.Metrics) *APIV1Service {
	if metrics == nil {
		metrics = observability.NewMetrics(0)
	}
	return &APIV1Service{
		Orchestrator: orchestrator,
		Sessions:     sessions,
		Metrics:      metrics,
		AgentMetrics: agentMetrics,
	}
}

// RegisterRoutes registers the API routes on the given Echo instance.
// apiMiddleware applies to /api/v1 only, so health checks are never throttled.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo, apiMiddleware ...echo.MiddlewareFunc) {
	e.GET("/healthz", s.Healthz)

	api := e.Group("/api/v1", apiMiddleware...)
	api.POST("/query", s.Query)
	api.GET("/sessions", s.ListSessions)
	api.GET("/sessions/:id", s.GetSession)
	api.DELETE("/sessions/:id", s.DeleteSession)
	api.GET("/metrics", s.GetMetrics)
}

// Healthz reports liveness.
// GET /healthz
func (s *APIV1Service) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// writeError serves err as an AIError and records its code for the request middleware.
func writeError(c echo.Context, err error) error {
	aiErr := aierrors.FromTurnError(err)
	c.Set(middleware.ErrorCodeKey, string(aiErr.Code))

	if rc, ok := observability.FromContext(c.Request().Context()); ok {
		rc.Warn("request error",
			slog.String(observability.LogFieldErrorCode, string(aiErr.Code)),
			slog.String("error", err.Error()))
	} else {
		slog.Warn("request error", "error_code", aiErr.Code, "error", err)
	}

	return c.JSON(aiErr.HTTPStatus(), aiErr)
}
