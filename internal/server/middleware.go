package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	obslog "github.com/winwai/raffled/internal/observability/logger"
	"github.com/winwai/raffled/internal/observability/logmask"
)

// requestLogger logs one line per request with credentials masked and trace
// context attached.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		obslog.WithTrace(c.Request.Context(), s.log).Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.Any("headers", logmask.MaskHeaders(c.Request.Header)),
		)
	}
}
