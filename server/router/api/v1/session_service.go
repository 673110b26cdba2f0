package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	aierrors "github.com/hrygo/chatops/server/internal/errors"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// ListSessions lists persisted sessions, most recent first.
// GET /api/v1/sessions?limit=20
func (s *APIV1Service) ListSessions(c echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return writeError(c, aierrors.InvalidArgument("limit must be a positive integer"))
		}
		limit = min(n, maxListLimit)
	}

	sessions, err := s.Sessions.List(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

// GetSession returns the summary, history and token count of a session.
// GET /api/v1/sessions/:id
func (s *APIV1Service) GetSession(c echo.Context) error {
	info, err := s.Sessions.Inspect(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// DeleteSession clears a session.
// DELETE /api/v1/sessions/:id
func (s *APIV1Service) DeleteSession(c echo.Context) error {
	id := c.Param("id")
	if err := s.Sessions.Reset(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"session_id": id, "cleared": true})
}
