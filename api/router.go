package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	// APIKey, when set, is required in the X-API-Key header of every request
	// except /health.
	APIKey   string
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg RouterConfig, runner Runner) *gin.Engine {
	r := gin.New() // Use New() to skip default logger/recovery middleware for custom ones
	r.Use(gin.Recovery())

	if cfg.APIKey != "" {
		r.Use(func(c *gin.Context) {
			if c.Request.URL.Path == "/health" {
				c.Next()
				return
			}
			if c.GetHeader("X-API-Key") != cfg.APIKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.Next()
		})
	}

	r.Use(requestLogger)

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	r.Use(cors.New(config))

	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	r.POST("/api/export", ExportHandler(runner))
	return r
}

// requestLogger logs every request through slog.
func requestLogger(c *gin.Context) {
	start := time.Now()
	path := c.Request.URL.Path
	raw := c.Request.URL.RawQuery

	c.Next()

	latency := time.Since(start)
	status := c.Writer.Status()

	msg := "Request processed"
	attrs := []any{
		slog.String("method", c.Request.Method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("latency", latency),
		slog.String("client_ip", c.ClientIP()),
	}
	if raw != "" {
		attrs = append(attrs, slog.String("query", raw))
	}
	if jobName := c.GetHeader("X-CloudScheduler-JobName"); jobName != "" {
		attrs = append(attrs, slog.String("scheduler_job", jobName))
	}

	if status >= 500 {
		slog.Error(msg, attrs...)
	} else {
		slog.Info(msg, attrs...)
	}
}
