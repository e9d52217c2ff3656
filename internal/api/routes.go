package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/gin"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/metrics"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/monitoring"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/sse"
)

// RouteOptions carries the optional parts of the route table. Nil fields
// leave their routes out.
type RouteOptions struct {
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
	Events         *sse.Broker
	// JWTSecret protects every /api route except /api/health when set.
	JWTSecret string
}

// SetupRoutes configures all API routes.
// Health routes are registered by the infrastructure gin builder.
func SetupRoutes(router *gin.Engine, h *Handler, opts RouteOptions) {
	if opts.HTTPMetrics != nil {
		router.Use(opts.HTTPMetrics.Middleware())
	}

	// Memory health endpoint
	router.GET("/health/memory", func(c *gin.Context) {
		monitoring.MemoryHealthHandler(c.Writer, c.Request)
	})

	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	public := infragin.PublicGroup(router, "/api")
	public.GET("/health", h.HandleHealth)

	protected := infragin.ProtectedGroup(router, "/api", opts.JWTSecret)
	protected.POST("/run", h.HandleRun)
	protected.GET("/status", h.HandleStatus)
	if opts.Events != nil {
		protected.GET("/events", sse.Handler(opts.Events))
	}
}
