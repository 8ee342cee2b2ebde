package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// routePath prefers the registered route template so record ids do not explode label cardinality.
func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return "unmatched"
}

func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.Last().Error())
		}

		event.
			Str("method", c.Request.Method).
			Str("route", routePath(c)).
			Str("uri", c.Request.URL.RequestURI()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int64("request_bytes", c.Request.ContentLength).
			Int("response_bytes", c.Writer.Size()).
			Msg("http_request")
	}
}

func RequestMetricsMiddleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(service, c.Request.Method, routePath(c), c.Writer.Status(), time.Since(start))
	}
}
