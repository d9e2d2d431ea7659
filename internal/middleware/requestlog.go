package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-scheduler/internal/logger"
)

// CtxLogger holds the request-scoped logger.
const CtxLogger = "logger"

// RequestLogger tags every request with an X-Request-ID (reusing the
// client's when sent) and logs one line when it completes.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			reqLog := log.WithRequestID(id)
			c.Set(CtxLogger, reqLog)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			attrs := []any{
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
				"user_id", UserID(c),
			}
			switch {
			case status >= 500:
				reqLog.Error("request", attrs...)
			case status >= 400:
				reqLog.Warn("request", attrs...)
			default:
				reqLog.Info("request", attrs...)
			}
			return nil
		}
	}
}

// Logger returns the request-scoped logger, or the default one.
func Logger(c echo.Context) *logger.Logger {
	if l, ok := c.Get(CtxLogger).(*logger.Logger); ok {
		return l
	}
	return logger.GetDefault()
}
