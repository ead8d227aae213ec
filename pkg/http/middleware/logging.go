package middleware

import (
	"time"

	"github.com/RiverSpider/PavelBot/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging writes one debug line per request. Failures are reported
// by the metrics middleware and the error handler.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			log.Debug("http request",
				logger.String("request_id", GetRequestID(c)),
				logger.String("method", req.Method),
				logger.String("uri", req.RequestURI),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency_ms", time.Since(start)))
			return err
		}
	}
}
