package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatops/plugin/ai/agent"
	"github.com/hrygo/chatops/plugin/ai/memory"
	"github.com/hrygo/chatops/plugin/ai/session"
	"github.com/hrygo/chatops/plugin/ai/timeout"
	aierrors "github.com/hrygo/chatops/server/internal/errors"
	"github.com/hrygo/chatops/server/internal/observability"
)

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	// SessionID selects the conversation. Empty starts a new one.
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// QueryResponse is the answer to a query.
type QueryResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Function  string `json:"function,omitempty"`
	Degraded  bool   `json:"degraded,omitempty"`
}

// Query runs one turn in the caller's session.
// POST /api/v1/query
func (s *APIV1Service) Query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, aierrors.InvalidArgument("request body must be JSON"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return writeError(c, aierrors.InvalidArgument("query is required"))
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	}
	if rc, ok := observability.FromContext(c.Request().Context()); ok {
		rc.SessionID = sessionID
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout.TurnTimeout)
	defer cancel()

	var result *agent.TurnResult
	err := s.Sessions.Do(ctx, sessionID, func(ctx context.Context, mem *memory.ConversationMemory) error {
		r, err := s.Orchestrator.Answer(ctx, mem, req.Query)
		result = r
		return err
	})
	if err != nil {
		return writeError(c, err)
	}

	if rc, ok := observability.FromContext(c.Request().Context()); ok {
		rc.Info("query answered",
			slog.Int(observability.LogFieldQueryLen, len(req.Query)),
			slog.String(observability.LogFieldFunction, result.Function))
	}

	return c.JSON(http.StatusOK, QueryResponse{
		SessionID: sessionID,
		Answer:    result.Answer,
		Function:  result.Function,
		Degraded:  result.Degraded,
	})
}
