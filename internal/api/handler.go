// Package api exposes the deal-finder pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/pipeline"
)

// Runner is the part of the orchestrator the handlers need.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (domain.RunResult, error)
	LastResult() (domain.RunResult, bool)
	Sites() []domain.CountrySite
	Configured() bool
	TransportName() string
}

// ServiceInfo is reported by GET /api/status.
type ServiceInfo struct {
	Name     string
	Version  string
	Fetcher  string
	Analyzer string
}

// RunRequest is the body of POST /api/run.
type RunRequest struct {
	RecipientEmail string `binding:"required,email"   json:"recipient_email"`
	// MaxResults defaults to the orchestrator's default when absent. 0 sends nothing.
	MaxResults *int           `binding:"omitempty,gte=0" json:"max_results"`
	Filters    domain.Filters `json:"filters"`
}

// RunResponse is the body returned by POST /api/run.
type RunResponse struct {
	Status        domain.RunStatus       `json:"status"`
	RunID         string                 `json:"run_id"`
	DealsFound    int                    `json:"deals_found"`
	DealsSent     int                    `json:"deals_sent"`
	Delivered     bool                   `json:"delivered"`
	DeliveryError string                 `json:"delivery_error,omitempty"`
	PreviewHTML   string                 `json:"preview_html"`
	Deals         []domain.DealRecord    `json:"deals"`
	Countries     []domain.CountryReport `json:"countries"`
}

// RunSummary is the last run as reported by GET /api/status.
type RunSummary struct {
	RunID      string                 `json:"run_id"`
	Status     domain.RunStatus       `json:"status"`
	DealsFound int                    `json:"deals_found"`
	DealsSent  int                    `json:"deals_sent"`
	Delivered  bool                   `json:"delivered"`
	StartedAt  time.Time              `json:"started_at"`
	DurationMs int64                  `json:"duration_ms"`
	Countries  []domain.CountryReport `json:"countries"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Service            string      `json:"service"`
	Version            string      `json:"version"`
	Countries          []string    `json:"countries"`
	Fetcher            string      `json:"fetcher"`
	Analyzer           string      `json:"analyzer"`
	AnalyzerConfigured bool        `json:"analyzer_configured"`
	Transport          string      `json:"transport"`
	LastRun            *RunSummary `json:"last_run"`
}

// Handler serves the deal-finder endpoints.
type Handler struct {
	runner Runner
	info   ServiceInfo
}

// NewHandler creates a new Handler. Handlers log through the request-scoped
// logger installed by the gin request-ID middleware.
func NewHandler(runner Runner, info ServiceInfo) *Handler {
	return &Handler{runner: runner, info: info}
}

// HandleRun executes one synchronous pipeline run.
func (h *Handler) HandleRun(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Filters.MinTier != "" && !req.Filters.MinTier.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown min_tier " + string(req.Filters.MinTier)})
		return
	}

	log := logger.FromContext(c.Request.Context()).With(logger.String("component", "api"))
	log.Info("Run requested",
		logger.Bool("default_max_results", req.MaxResults == nil),
		logger.Bool("filtered", !req.Filters.IsZero()),
	)

	res, err := h.runner.Run(c.Request.Context(), pipeline.Request{
		Recipient:  req.RecipientEmail,
		MaxResults: req.MaxResults,
		Filters:    req.Filters,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRecipient) || errors.Is(err, pipeline.ErrInvalidMaxResults) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Error("Run failed", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run failed"})
		return
	}

	c.JSON(http.StatusOK, RunResponse{
		Status:        res.Status,
		RunID:         res.RunID,
		DealsFound:    res.DealsFound,
		DealsSent:     res.DealsSent,
		Delivered:     res.Delivered,
		DeliveryError: res.DeliveryError,
		PreviewHTML:   res.PreviewHTML,
		Deals:         nonNilDeals(res.Deals),
		Countries:     res.Countries,
	})
}

// HandleStatus reports configuration and the most recent run.
func (h *Handler) HandleStatus(c *gin.Context) {
	sites := h.runner.Sites()
	countries := make([]string, 0, len(sites))
	for _, s := range sites {
		countries = append(countries, s.Country)
	}

	resp := StatusResponse{
		Service:            h.info.Name,
		Version:            h.info.Version,
		Countries:          countries,
		Fetcher:            h.info.Fetcher,
		Analyzer:           h.info.Analyzer,
		AnalyzerConfigured: h.runner.Configured(),
		Transport:          h.runner.TransportName(),
	}

	if last, ok := h.runner.LastResult(); ok {
		resp.LastRun = &RunSummary{
			RunID:      last.RunID,
			Status:     last.Status,
			DealsFound: last.DealsFound,
			DealsSent:  last.DealsSent,
			Delivered:  last.Delivered,
			StartedAt:  last.StartedAt,
			DurationMs: last.Duration.Milliseconds(),
			Countries:  last.Countries,
		}
	}

	c.JSON(http.StatusOK, resp)
}

// HandleHealth is a liveness probe.
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func nonNilDeals(deals []domain.DealRecord) []domain.DealRecord {
	if deals == nil {
		return []domain.DealRecord{}
	}
	return deals
}
