package api

import (
	"time"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/gin"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/metrics"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/sse"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/config"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/telemetry"
)

const (
	defaultReadTimeout = 30 * time.Second
	defaultIdleTimeout = 120 * time.Second
	metricsNamespace   = "deal_finder"
)

// NewServer creates a new HTTP server. runTimeout bounds POST /api/run, so the
// write timeout is kept above it.
func NewServer(
	h *Handler,
	cfg *config.Config,
	tp *telemetry.Provider,
	events *sse.Broker,
	runTimeout time.Duration,
	log logger.Logger,
) *infragin.Server {
	httpMetrics := metrics.NewHTTPMetrics(tp.Registry(), metricsNamespace)

	return infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithTimeouts(defaultReadTimeout, runTimeout+time.Minute, defaultIdleTimeout).
		WithHealthCheck("analyzer", analyzerCheck(h.runner)).
		WithRoutes(func(router *gin.Engine) {
			SetupRoutes(router, h, RouteOptions{
				HTTPMetrics:    httpMetrics,
				MetricsHandler: tp.Handler(),
				Events:         events,
				JWTSecret:      cfg.Service.JWTSecret,
			})
		}).
		Build()
}

func analyzerCheck(r Runner) infragin.HealthChecker {
	return func() infragin.CheckResult {
		if !r.Configured() {
			return infragin.CheckResult{
				Status:  infragin.HealthStatusDegraded,
				Message: "no completion backend configured",
			}
		}
		return infragin.CheckResult{Status: infragin.HealthStatusHealthy}
	}
}
