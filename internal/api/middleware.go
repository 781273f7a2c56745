package api

import (
	"net/http"
	"time"

	"tradecollector/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// recovery turns a panic into the generic 500 body.
func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.Error("panic serving request",
			zap.String("path", c.Request.URL.Path), zap.Any("error", err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":    "error",
			"message":   "Internal server error",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}

func accessLog(logger *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.ObserveHTTP(route, status, elapsed)
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed))
	}
}
