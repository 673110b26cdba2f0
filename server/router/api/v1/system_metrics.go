package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatops/plugin/ai/agent"
	"github.com/hrygo/chatops/server/internal/observability"
)

// MetricsResponse combines HTTP and turn metrics.
type MetricsResponse struct {
	HTTP           *observability.MetricsSnapshot `json:"http"`
	Turns          *agent.MetricsSummary          `json:"turns,omitempty"`
	ActiveSessions int                            `json:"active_sessions"`
}

// GetMetrics returns the in-process metrics.
// GET /api/v1/metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	resp := MetricsResponse{
		HTTP:           s.Metrics.Snapshot(),
		ActiveSessions: s.Sessions.Len(),
	}
	if s.AgentMetrics != nil {
		summary := s.AgentMetrics.Summary()
		resp.Turns = &summary
	}
	return c.JSON(http.StatusOK, resp)
}
