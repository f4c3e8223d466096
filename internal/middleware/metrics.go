package middleware

import (
	"shop-service/prometheus"
	"time"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware adds prometheus metrics to track HTTP requests
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		status := c.Response().Status
		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
		}

		// c.Path() is the route template, which keeps label cardinality bounded
		prometheus.RecordHTTPRequest(c.Request().Method, c.Path(), status, time.Since(start))

		return err
	}
}
