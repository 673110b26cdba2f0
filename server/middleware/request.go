package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/chatops/server/internal/observability"
)

// ErrorCodeKey is the echo context key a handler sets to the error code it served.
const ErrorCodeKey = "error_code"

// RequestContext attaches an observability.RequestContext to each request,
// echoes the request id back, logs completion and records metrics.
func RequestContext(logger *slog.Logger, metrics *observability.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rc := observability.NewRequestContextWithID(logger, req.Header.Get(observability.HeaderRequestID), c.Path())
			c.Response().Header().Set(observability.HeaderRequestID, rc.RequestID)
			c.SetRequest(req.WithContext(observability.WithRequestContext(req.Context(), rc)))

			err := next(c)
			if err != nil {
				// Let echo render the error so the recorded status is final.
				c.Error(err)
			}

			status := c.Response().Status
			code, _ := c.Get(ErrorCodeKey).(string)
			if code == "" && status >= http.StatusInternalServerError {
				code = http.StatusText(status)
			}
			if metrics != nil {
				metrics.RecordRequest(c.Path(), rc.Duration(), code)
			}

			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.Int(observability.LogFieldStatus, status),
				slog.Int64(observability.LogFieldDuration, rc.DurationMs()),
			}
			if code != "" {
				attrs = append(attrs, slog.String(observability.LogFieldErrorCode, code))
			}
			if status >= http.StatusInternalServerError {
				rc.Warn("request failed", attrs...)
			} else {
				rc.Debug("request completed", attrs...)
			}
			return nil
		}
	}
}
