// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for pipeline runs.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "deal-finder"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds all deal-finder Prometheus metrics
type Metrics struct {
	// Run metrics
	RunsTotal        *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
	DealsSent        prometheus.Histogram

	// Stage metrics
	FetchTotal         *prometheus.CounterVec
	FetchDuration      *prometheus.HistogramVec
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	DealsExtracted     *prometheus.CounterVec
	DealsDropped       *prometheus.CounterVec

	// Delivery metrics
	DeliveriesTotal *prometheus.CounterVec

	// Dependency health
	BreakerState *prometheus.GaugeVec
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer   trace.Tracer
	Metrics  *Metrics
	registry *prometheus.Registry
}

// NewProvider initializes telemetry on a dedicated registry that also carries
// the Go runtime and process collectors.
func NewProvider() *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Provider{
		Tracer:   otel.Tracer(serviceName),
		Metrics:  initMetrics(promauto.With(reg)),
		registry: reg,
	}
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the registry for tests and extra collectors.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

func initMetrics(factory promauto.Factory) *Metrics {
	m := &Metrics{}
	initRunMetrics(factory, m)
	initStageMetrics(factory, m)
	initDeliveryMetrics(factory, m)
	return m
}

func initRunMetrics(factory promauto.Factory, m *Metrics) {
	m.RunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_finder_runs_total",
		Help: "Total pipeline runs by final status",
	}, []string{"status"})

	m.RunDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "deal_finder_run_duration_seconds",
		Help:    "Wall time of a full pipeline run",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	m.LastRunTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Name: "deal_finder_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})

	m.DealsSent = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "deal_finder_deals_sent",
		Help:    "Deals included in each digest",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
	})
}

func initStageMetrics(factory promauto.Factory, m *Metrics) {
	m.FetchTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_finder_fetch_total",
		Help: "Catalog fetches by country and outcome",
	}, []string{"country", "outcome"})

	m.FetchDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deal_finder_fetch_duration_seconds",
		Help:    "Time to fetch one catalog",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
	}, []string{"country"})

	m.ExtractionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_finder_extractions_total",
		Help: "Deal extractions by country and outcome",
	}, []string{"country", "outcome"})

	m.ExtractionDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deal_finder_extraction_duration_seconds",
		Help:    "Time for one completion call plus parsing",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"country"})

	m.DealsExtracted = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_finder_deals_extracted_total",
		Help: "Valid deals extracted per country",
	}, []string{"country"})

	m.DealsDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_finder_deals_dropped_total",
		Help: "Candidate deals dropped by validation per country",
	}, []string{"country"})
}

func initDeliveryMetrics(factory promauto.Factory, m *Metrics) {
	m.DeliveriesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_finder_deliveries_total",
		Help: "Digest deliveries by transport and outcome",
	}, []string{"transport", "outcome"})

	m.BreakerState = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deal_finder_circuit_breaker_state",
		Help: "Circuit breaker state per dependency (0 closed, 1 open, 2 half-open)",
	}, []string{"name"})
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// RecordRun records the end of a pipeline run
func (p *Provider) RecordRun(_ context.Context, status string, dealsSent int, duration time.Duration) {
	p.Metrics.RunsTotal.WithLabelValues(status).Inc()
	p.Metrics.RunDuration.Observe(duration.Seconds())
	p.Metrics.DealsSent.Observe(float64(dealsSent))
	p.Metrics.LastRunTimestamp.SetToCurrentTime()
}

// RecordFetch records one catalog fetch
func (p *Provider) RecordFetch(_ context.Context, country string, success bool, duration time.Duration) {
	p.Metrics.FetchTotal.WithLabelValues(country, outcome(success)).Inc()
	p.Metrics.FetchDuration.WithLabelValues(country).Observe(duration.Seconds())
}

// RecordExtraction records one extraction. outcomeLabel is one of the Outcome constants.
func (p *Provider) RecordExtraction(_ context.Context, country, outcomeLabel string, deals, dropped int, duration time.Duration) {
	p.Metrics.ExtractionsTotal.WithLabelValues(country, outcomeLabel).Inc()
	if outcomeLabel == OutcomeSkipped {
		return
	}
	p.Metrics.ExtractionDuration.WithLabelValues(country).Observe(duration.Seconds())
	p.Metrics.DealsExtracted.WithLabelValues(country).Add(float64(deals))
	p.Metrics.DealsDropped.WithLabelValues(country).Add(float64(dropped))
}

// RecordDelivery records a digest delivery attempt
func (p *Provider) RecordDelivery(_ context.Context, transport string, success bool) {
	p.Metrics.DeliveriesTotal.WithLabelValues(transport, outcome(success)).Inc()
}

// SetBreakerState publishes a circuit breaker state as its numeric value.
func (p *Provider) SetBreakerState(name string, state int) {
	p.Metrics.BreakerState.WithLabelValues(name).Set(float64(state))
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
