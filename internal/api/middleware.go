package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"rental-ledger/internal/logging"
)

// requestLogger tags each request with a trace id, propagates it through
// the request context and logs one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, _ := logging.WithTraceContext(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		traceID := logging.TraceIDFromContext(ctx)
		c.Header("X-Trace-ID", traceID)

		c.Next()

		event := s.log.Info()
		if c.Writer.Status() >= 500 {
			event = s.log.Error()
		} else if c.Writer.Status() >= 400 {
			event = s.log.Warn()
		}
		event.
			Str("trace_id", traceID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}
