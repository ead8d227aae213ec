package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/RiverSpider/PavelBot/pkg/logger"
	"github.com/RiverSpider/PavelBot/pkg/metrics"

	"github.com/labstack/echo/v4"
)

// Metrics records request count, latency and response size per route
// template. 5xx responses are logged as errors and slow requests as
// warnings.
func Metrics(reg *metrics.Registry, log *logger.Logger, slow time.Duration) echo.MiddlewareFunc {
	requests := reg.CounterVec("http", "requests_total", "HTTP requests by route, method and status.", "route", "method", "status")
	duration := reg.HistogramVec("http", "request_duration_seconds", "HTTP request latency.",
		[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}, "route", "method", "class")
	inFlight := reg.GaugeVec("http", "in_flight_requests", "Requests currently being served.", "route")
	size := reg.HistogramVec("http", "response_size_bytes", "Response payload size.",
		[]float64{200, 1_000, 5_000, 20_000, 100_000, 500_000}, "route")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// route template, not raw URL, keeps cardinality bounded
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			inFlight.WithLabelValues(route).Inc()
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)
			inFlight.WithLabelValues(route).Dec()

			status := c.Response().Status
			if err != nil {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			duration.WithLabelValues(route, method, statusClass(status)).Observe(elapsed.Seconds())
			size.WithLabelValues(route).Observe(float64(c.Response().Size))

			switch {
			case status >= 500:
				log.Error("http request failed",
					logger.String("route", route),
					logger.String("method", method),
					logger.Int("status", status),
					logger.Duration("duration_ms", elapsed))
			case slow > 0 && elapsed >= slow:
				log.Warn("http request slow",
					logger.String("route", route),
					logger.String("method", method),
					logger.Duration("duration_ms", elapsed))
			}
			return err
		}
	}
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
