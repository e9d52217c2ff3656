package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/analyzer"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/fetcher"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/ranking"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/telemetry"
)

// Run executes one pass. Only invalid requests return an error; every
// collaborator failure is reported in the result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (domain.RunResult, error) {
	maxResults, err := o.checkRequest(req)
	if err != nil {
		return domain.RunResult{}, err
	}
	recipient := strings.TrimSpace(req.Recipient)

	started := o.now()
	res := domain.RunResult{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Deals:     []domain.DealRecord{},
	}
	log := o.log.With(logger.String("run_id", res.RunID))

	ctx, span := o.telemetry.StartSpan(ctx, "pipeline.run",
		attribute.String("run_id", res.RunID),
		attribute.Int("max_results", maxResults),
	)
	defer span.End()

	sites := o.selectSites(req.Filters)
	res.Countries = make([]domain.CountryReport, len(sites))
	for i, s := range sites {
		res.Countries[i].Country = s.Country
	}

	log.Info("Starting run",
		logger.Int("countries", len(sites)),
		logger.Int("max_results", maxResults),
	)
	names := make([]string, len(sites))
	for i, s := range sites {
		names[i] = s.Country
	}
	o.emit(ctx, EventRunStarted, res.RunID, RunStartedData{
		RunID: res.RunID, Countries: names, MaxResults: maxResults, Timestamp: started,
	})

	if !o.extractor.Configured() {
		log.Warn("No completion backend configured, nothing will be analyzed")
		for i := range res.Countries {
			res.Countries[i].Error = analyzer.ErrNotConfigured.Error()
		}
		res.Status = domain.RunStatusMisconfigured
		return o.finish(ctx, log, res), nil
	}

	catalogs := o.fetchAll(ctx, res.RunID, sites)
	extractions := o.extractAll(ctx, res.RunID, catalogs)

	merged := make([]domain.DealRecord, 0)
	for i := range sites {
		report := &res.Countries[i]
		report.FetchedChars = utf8.RuneCountInString(catalogs[i].Text)

		switch {
		case catalogs[i].Err != nil:
			report.Error = catalogs[i].Err.Error()
		case extractions[i].Skipped:
			report.Skipped = true
		case extractions[i].Err != nil:
			report.Error = extractions[i].Err.Error()
		}

		report.Deals = len(extractions[i].Deals)
		report.Dropped = extractions[i].Dropped
		merged = append(merged, extractions[i].Deals...)
	}

	filtered := ranking.Apply(merged, req.Filters)
	top := ranking.RankAndTruncate(filtered, maxResults)

	res.DealsFound = len(filtered)
	res.DealsSent = len(top)
	res.Deals = top
	res.Status = deriveStatus(res.Countries)

	if len(top) > 0 {
		o.deliver(ctx, log, recipient, &res)
	} else {
		log.Info("No deals found, skipping notification")
	}

	return o.finish(ctx, log, res), nil
}

func (o *Orchestrator) deliver(ctx context.Context, log logger.Logger, recipient string, res *domain.RunResult) {
	ctx, span := o.telemetry.StartSpan(ctx, "pipeline.notify", attribute.Int("deals", len(res.Deals)))
	defer span.End()

	outcome := o.notifier.Notify(ctx, recipient, res.Deals)
	res.PreviewHTML = outcome.HTML
	res.Delivered = outcome.Delivered
	o.telemetry.RecordDelivery(ctx, o.notifier.TransportName(), outcome.Err == nil)

	if outcome.Err != nil {
		res.DeliveryError = outcome.Err.Error()
		span.SetStatus(codes.Error, outcome.Err.Error())
		log.Warn("Digest not delivered", logger.Error(outcome.Err))
	}
}

func (o *Orchestrator) finish(ctx context.Context, log logger.Logger, res domain.RunResult) domain.RunResult {
	res.Duration = o.now().Sub(res.StartedAt)
	o.telemetry.RecordRun(ctx, string(res.Status), res.DealsSent, res.Duration)
	o.store(res)
	o.emit(ctx, EventRunCompleted, res.RunID, RunCompletedData{
		RunID:      res.RunID,
		Status:     res.Status,
		DealsFound: res.DealsFound,
		DealsSent:  res.DealsSent,
		Delivered:  res.Delivered,
		DurationMs: res.Duration.Milliseconds(),
	})

	log.Info("Run finished",
		logger.String("status", string(res.Status)),
		logger.Int("deals_found", res.DealsFound),
		logger.Int("deals_sent", res.DealsSent),
		logger.Bool("delivered", res.Delivered),
		logger.Duration("duration", res.Duration),
	)
	return res
}

func (o *Orchestrator) limit(tasks int) int {
	if o.cfg.Concurrency > 0 {
		return o.cfg.Concurrency
	}
	return max(tasks, 1)
}

// fetchAll fetches every site concurrently. Slot i always belongs to sites[i].
func (o *Orchestrator) fetchAll(ctx context.Context, runID string, sites []domain.CountrySite) []fetcher.Result {
	results := make([]fetcher.Result, len(sites))

	var g errgroup.Group
	g.SetLimit(o.limit(len(sites)))

	for i, site := range sites {
		g.Go(func() error {
			results[i] = o.fetchOne(ctx, site)
			o.emitFetched(ctx, runID, results[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) fetchOne(ctx context.Context, site domain.CountrySite) (res fetcher.Result) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
	defer cancel()

	ctx, span := o.telemetry.StartSpan(ctx, "pipeline.fetch", attribute.String("country", site.Country))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res = fetcher.Result{Country: site.Country, URL: site.URL, Err: fmt.Errorf("fetcher panicked: %v", r)}
		}
		if res.Err != nil {
			span.SetStatus(codes.Error, res.Err.Error())
		}
		o.telemetry.RecordFetch(ctx, site.Country, res.Err == nil, res.Duration)
	}()

	return o.fetcher.Fetch(ctx, site.URL, site.Country)
}

// extractAll analyzes every catalog that was fetched and is long enough.
// Catalogs that are not analyzed leave a zero Result in their slot, with
// Skipped set when the text was too short.
func (o *Orchestrator) extractAll(ctx context.Context, runID string, catalogs []fetcher.Result) []analyzer.Result {
	results := make([]analyzer.Result, len(catalogs))
	minChars := o.extractor.MinContentChars()

	var g errgroup.Group
	g.SetLimit(o.limit(len(catalogs)))

	for i, catalog := range catalogs {
		if catalog.Err != nil {
			continue
		}
		if utf8.RuneCountInString(catalog.Text) < minChars {
			o.log.Warn("Catalog text below analysis threshold",
				logger.String("country", catalog.Country),
				logger.Int("chars", utf8.RuneCountInString(catalog.Text)),
			)
			results[i] = analyzer.Result{Country: catalog.Country, Skipped: true}
			o.telemetry.RecordExtraction(ctx, catalog.Country, telemetry.OutcomeSkipped, 0, 0, 0)
			o.emitAnalyzed(ctx, runID, results[i])
			continue
		}

		g.Go(func() error {
			results[i] = o.extractOne(ctx, catalog)
			o.emitAnalyzed(ctx, runID, results[i])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) extractOne(ctx context.Context, catalog fetcher.Result) (res analyzer.Result) {
	ctx, span := o.telemetry.StartSpan(ctx, "pipeline.extract", attribute.String("country", catalog.Country))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res = analyzer.Result{Country: catalog.Country, Err: fmt.Errorf("extractor panicked: %v", r)}
		}
		label := telemetry.OutcomeSuccess
		switch {
		case res.Skipped:
			label = telemetry.OutcomeSkipped
		case res.Err != nil:
			label = telemetry.OutcomeFailure
			span.SetStatus(codes.Error, res.Err.Error())
		}
		o.telemetry.RecordExtraction(ctx, catalog.Country, label, len(res.Deals), res.Dropped, res.Duration)
	}()

	return o.extractor.Extract(ctx, catalog.Text, catalog.Country)
}

func (o *Orchestrator) emitFetched(ctx context.Context, runID string, res fetcher.Result) {
	data := CountryData{RunID: runID, Country: res.Country, Chars: utf8.RuneCountInString(res.Text)}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	o.emit(ctx, EventCountryFetched, runID, data)
}

func (o *Orchestrator) emitAnalyzed(ctx context.Context, runID string, res analyzer.Result) {
	data := CountryData{
		RunID:   runID,
		Country: res.Country,
		Deals:   len(res.Deals),
		Dropped: res.Dropped,
		Skipped: res.Skipped,
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	o.emit(ctx, EventCountryAnalyzed, runID, data)
}

// deriveStatus marks a run degraded when any country failed or produced text
// too short to analyze.
func deriveStatus(reports []domain.CountryReport) domain.RunStatus {
	for _, r := range reports {
		if r.Error != "" || r.Skipped {
			return domain.RunStatusDegraded
		}
	}
	return domain.RunStatusOK
}
