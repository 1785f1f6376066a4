package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// loggingMiddleware provides structured request logging via
// gin.LoggerWithFormatter piped through slog.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		s.logger.Info("http request",
			"method", param.Method,
			"path", param.Path,
			"status", param.StatusCode,
			"latency", param.Latency,
			"ip", param.ClientIP,
			"error", param.ErrorMessage,
		)
		return ""
	})
}

// requestSizeMiddleware limits request body size, since a run submission
// body (tasks + cleaners) is the one place an operator-facing endpoint
// here accepts a body at all.
func (s *Server) requestSizeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.API.MaxBodySize)
		c.Next()
	}
}
