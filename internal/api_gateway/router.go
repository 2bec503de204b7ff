package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/financial-twin-engine/internal/api_gateway/handler"
	"github.com/financial-twin-engine/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Twin      *handler.TwinHandler
	Analytics *handler.AnalyticsHandler
	Verify    *handler.VerifyHandler
	Webhook   *handler.WebhookHandler
}

// ReadinessCheck reports whether one backing store answers
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

const readinessTimeout = 2 * time.Second

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, h Handlers, checks []ReadinessCheck, requestTimeout time.Duration) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger, "/health", "/ready"))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.RequestTimeout(requestTimeout))

	v1 := r.Group("/api/v1")
	{
		twins := v1.Group("/twins")
		{
			twins.POST("", h.Twin.Register)
			twins.GET("/:twin_id", h.Twin.Get)
			twins.POST("/:twin_id/regenerate", h.Twin.Regenerate)
			twins.GET("/:twin_id/snapshots", h.Twin.History)
			twins.GET("/:twin_id/snapshots/:snapshot_id", h.Twin.Snapshot)
			twins.GET("/:twin_id/ghost", h.Twin.Ghost)

			// Derived views; none of these write a snapshot
			twins.POST("/:twin_id/stress-test", h.Analytics.StressTest)
			twins.GET("/:twin_id/anomalies", h.Analytics.Anomalies)
			twins.GET("/:twin_id/benchmark", h.Analytics.Benchmark)
			twins.GET("/:twin_id/pillar-explanations", h.Analytics.Explain)
			twins.GET("/:twin_id/narrative", h.Analytics.Narrative)
		}

		// Public: answers from the ledger alone
		v1.GET("/verify/:content_hash", h.Verify.Verify)

		v1.POST("/webhooks/aggregator", h.Webhook.Aggregator)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	r.GET("/ready", readinessHandler(logger, checks))
}

func readinessHandler(logger *slog.Logger, checks []ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		status := http.StatusOK
		components := make(gin.H, len(checks))
		for _, check := range checks {
			if err := check.Ping(ctx); err != nil {
				logger.Warn("Readiness check failed", "component", check.Name, "error", err)
				components[check.Name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			components[check.Name] = "ok"
		}
		c.JSON(status, gin.H{"ready": status == http.StatusOK, "components": components})
	}
}
