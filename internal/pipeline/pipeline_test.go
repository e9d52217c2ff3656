package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/analyzer"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/fetcher"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/notifier"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/pipeline"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/telemetry"
)

type fakeFetcher struct {
	mu      sync.Mutex
	fetchFn func(ctx context.Context, url, country string) fetcher.Result
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, country string) fetcher.Result {
	f.mu.Lock()
	f.fetched = append(f.fetched, country)
	f.mu.Unlock()
	return f.fetchFn(ctx, url, country)
}

func (f *fakeFetcher) countries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

// textFetcher returns catalogs of the given lengths per country.
func textFetcher(lengths map[string]int) *fakeFetcher {
	return &fakeFetcher{fetchFn: func(_ context.Context, url, country string) fetcher.Result {
		return fetcher.Result{Country: country, URL: url, Text: strings.Repeat("x", lengths[country])}
	}}
}

type fakeExtractor struct {
	calls      atomic.Int32
	configured bool
	extractFn  func(ctx context.Context, text, country string) analyzer.Result
}

func (f *fakeExtractor) Extract(ctx context.Context, text, country string) analyzer.Result {
	f.calls.Add(1)
	return f.extractFn(ctx, text, country)
}

func (f *fakeExtractor) Configured() bool     { return f.configured }
func (f *fakeExtractor) MinContentChars() int { return analyzer.DefaultMinContentChars }

type fakeNotifier struct {
	notifyFn func(ctx context.Context, recipient string, deals []domain.DealRecord) notifier.Outcome
}

func (f *fakeNotifier) Notify(ctx context.Context, recipient string, deals []domain.DealRecord) notifier.Outcome {
	return f.notifyFn(ctx, recipient, deals)
}

func (f *fakeNotifier) TransportName() string { return "fake" }

func makeDeals(country string, scores ...float64) []domain.DealRecord {
	deals := make([]domain.DealRecord, len(scores))
	for i, s := range scores {
		deals[i] = domain.DealRecord{
			Title:      fmt.Sprintf("%s-%d", country, i),
			Price:      5,
			Condition:  "Good",
			URL:        fmt.Sprintf("https://www.vinted.it/items/%s-%d", country, i),
			Country:    country,
			DealScore:  s,
			DealReason: "Cheap.",
		}
	}
	return deals
}

// extractorWith returns fixed deals per country.
func extractorWith(byCountry map[string][]domain.DealRecord) *fakeExtractor {
	return &fakeExtractor{configured: true, extractFn: func(_ context.Context, _, country string) analyzer.Result {
		return analyzer.Result{Country: country, Deals: byCountry[country]}
	}}
}

func logOnlyNotifier() pipeline.Notifier {
	return notifier.New(nil, nil, infralogger.NewNop())
}

func newOrchestrator(f fetcher.Fetcher, e pipeline.Extractor, n pipeline.Notifier) *pipeline.Orchestrator {
	return pipeline.New(pipeline.Config{}, f, e, n, telemetry.NewProvider(), infralogger.NewNop())
}

func TestRun_SkipsShortCatalogs(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 5000, "France": 50, "Germany": 8000})
	e := extractorWith(map[string][]domain.DealRecord{
		"Italy":   makeDeals("Italy", 90, 80, 70),
		"France":  makeDeals("France", 99),
		"Germany": makeDeals("Germany", 85, 75, 65),
	})

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), e.calls.Load())
	assert.Equal(t, 6, res.DealsFound)
	assert.Equal(t, 6, res.DealsSent)
	assert.Equal(t, domain.RunStatusDegraded, res.Status)

	require.Len(t, res.Countries, 3)
	assert.True(t, res.Countries[1].Skipped)
	assert.Equal(t, 50, res.Countries[1].FetchedChars)
	assert.Equal(t, 3, res.Countries[0].Deals)
}

func TestRun_TruncatesAndRendersTopDeals(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	e := extractorWith(map[string][]domain.DealRecord{
		"Italy":   makeDeals("Italy", 60, 95),
		"France":  makeDeals("France", 70),
		"Germany": makeDeals("Germany", 80, 50),
	})

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{Recipient: "a@b.com", MaxResults: new(2)})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusOK, res.Status)
	assert.Equal(t, 5, res.DealsFound)
	assert.Equal(t, 2, res.DealsSent)
	assert.Equal(t, 2, strings.Count(res.PreviewHTML, `class="deal"`))
	require.Len(t, res.Deals, 2)
	assert.InDelta(t, 95.0, res.Deals[0].DealScore, 0)
	assert.InDelta(t, 80.0, res.Deals[1].DealScore, 0)
	assert.False(t, res.Delivered, "log-only transport delivers nothing")
	assert.NotEmpty(t, res.RunID)
}

func TestRun_TiesKeepCountryOrder(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	e := extractorWith(map[string][]domain.DealRecord{
		"Italy":   makeDeals("Italy", 80),
		"France":  makeDeals("France", 80),
		"Germany": makeDeals("Germany", 80),
	})

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	require.Len(t, res.Deals, 3)
	assert.Equal(t, []string{"Italy", "France", "Germany"},
		[]string{res.Deals[0].Country, res.Deals[1].Country, res.Deals[2].Country})
}

func TestRun_DeliveryFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	e := extractorWith(map[string][]domain.DealRecord{"Italy": makeDeals("Italy", 90, 80, 70)})
	n := &fakeNotifier{notifyFn: func(_ context.Context, _ string, deals []domain.DealRecord) notifier.Outcome {
		return notifier.Outcome{HTML: "<html>preview</html>", Err: fmt.Errorf("%w: boom", notifier.ErrDeliveryFailed)}
	}}

	res, err := newOrchestrator(f, e, n).Run(t.Context(), pipeline.Request{Recipient: "a@b.com", MaxResults: new(2)})
	require.NoError(t, err)

	assert.Equal(t, 2, res.DealsSent)
	assert.False(t, res.Delivered)
	assert.Contains(t, res.DeliveryError, "boom")
	assert.Equal(t, "<html>preview</html>", res.PreviewHTML)
	assert.Equal(t, domain.RunStatusOK, res.Status)
}

func TestRun_NoDealsSkipsNotification(t *testing.T) {
	t.Parallel()

	notified := false
	n := &fakeNotifier{notifyFn: func(context.Context, string, []domain.DealRecord) notifier.Outcome {
		notified = true
		return notifier.Outcome{}
	}}
	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})

	res, err := newOrchestrator(f, extractorWith(nil), n).Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	assert.False(t, notified)
	assert.Empty(t, res.PreviewHTML)
	assert.Equal(t, 0, res.DealsFound)
	assert.Equal(t, domain.RunStatusOK, res.Status)
	assert.NotNil(t, res.Deals)
}

func TestRun_FetchFailureDegrades(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{fetchFn: func(_ context.Context, url, country string) fetcher.Result {
		if country == "France" {
			return fetcher.Result{Country: country, URL: url, Err: errors.New("timeout")}
		}
		return fetcher.Result{Country: country, URL: url, Text: strings.Repeat("x", 500)}
	}}
	e := extractorWith(map[string][]domain.DealRecord{
		"Italy":   makeDeals("Italy", 90),
		"Germany": makeDeals("Germany", 70),
	})

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusDegraded, res.Status)
	assert.Equal(t, int32(2), e.calls.Load())
	assert.Equal(t, "timeout", res.Countries[1].Error)
	assert.Equal(t, 2, res.DealsSent)
}

func TestRun_ExtractionFailureDegrades(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	e := &fakeExtractor{configured: true, extractFn: func(_ context.Context, _, country string) analyzer.Result {
		if country == "Germany" {
			return analyzer.Result{Country: country, Err: analyzer.ErrMalformedResponse}
		}
		return analyzer.Result{Country: country, Deals: makeDeals(country, 60)}
	}}

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusDegraded, res.Status)
	assert.Equal(t, 2, res.DealsFound)
	assert.Contains(t, res.Countries[2].Error, "not valid JSON")
}

func TestRun_PanickingCollaboratorsAreContained(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{fetchFn: func(_ context.Context, url, country string) fetcher.Result {
		if country == "Italy" {
			panic("scraper bug")
		}
		return fetcher.Result{Country: country, URL: url, Text: strings.Repeat("x", 500)}
	}}
	e := &fakeExtractor{configured: true, extractFn: func(_ context.Context, _, country string) analyzer.Result {
		if country == "France" {
			panic("parser bug")
		}
		return analyzer.Result{Country: country, Deals: makeDeals(country, 75)}
	}}

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusDegraded, res.Status)
	assert.Contains(t, res.Countries[0].Error, "panicked")
	assert.Contains(t, res.Countries[1].Error, "panicked")
	assert.Equal(t, 1, res.DealsSent)
}

func TestRun_Misconfigured(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	e := &fakeExtractor{configured: false}

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusMisconfigured, res.Status)
	assert.Empty(t, f.countries())
	assert.Equal(t, int32(0), e.calls.Load())
	assert.Equal(t, 0, res.DealsFound)
	for _, c := range res.Countries {
		assert.NotEmpty(t, c.Error)
	}
}

func TestRun_CountryFilterNarrowsFetches(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	e := extractorWith(map[string][]domain.DealRecord{
		"Italy":   makeDeals("Italy", 90),
		"Germany": makeDeals("Germany", 80),
	})

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{
		Recipient: "a@b.com",
		Filters:   domain.Filters{Countries: []string{"de"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Germany"}, f.countries())
	require.Len(t, res.Countries, 1)
	assert.Equal(t, 1, res.DealsFound)
}

func TestRun_ScoreFilterAppliesBeforeCounting(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	e := extractorWith(map[string][]domain.DealRecord{"Italy": makeDeals("Italy", 95, 72, 40)})

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{
		Recipient: "a@b.com",
		Filters:   domain.Filters{MinTier: domain.TierGreat},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.DealsFound)
}

func TestRun_InvalidRequests(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(textFetcher(nil), extractorWith(nil), logOnlyNotifier())

	_, err := o.Run(t.Context(), pipeline.Request{Recipient: ""})
	require.ErrorIs(t, err, pipeline.ErrInvalidRecipient)

	_, err = o.Run(t.Context(), pipeline.Request{Recipient: "not-an-address"})
	require.ErrorIs(t, err, pipeline.ErrInvalidRecipient)

	_, err = o.Run(t.Context(), pipeline.Request{Recipient: "a@b.com", MaxResults: new(-1)})
	require.ErrorIs(t, err, pipeline.ErrInvalidMaxResults)

	_, ok := o.LastResult()
	assert.False(t, ok, "rejected requests do not count as runs")
}

func TestRun_UnsetMaxResultsUsesDefault(t *testing.T) {
	t.Parallel()

	scores := make([]float64, 30)
	for i := range scores {
		scores[i] = float64(i)
	}
	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	e := extractorWith(map[string][]domain.DealRecord{"Italy": makeDeals("Italy", scores...)})

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, 30, res.DealsFound)
	assert.Equal(t, pipeline.DefaultMaxResults, res.DealsSent)
}

func TestRun_ZeroMaxResultsSendsNothing(t *testing.T) {
	t.Parallel()

	var notified atomic.Bool
	n := &fakeNotifier{notifyFn: func(context.Context, string, []domain.DealRecord) notifier.Outcome {
		notified.Store(true)
		return notifier.Outcome{HTML: "<html></html>", Delivered: true}
	}}
	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	e := extractorWith(map[string][]domain.DealRecord{"Italy": makeDeals("Italy", 90, 80, 70)})

	res, err := newOrchestrator(f, e, n).Run(t.Context(), pipeline.Request{Recipient: "a@b.com", MaxResults: new(0)})
	require.NoError(t, err)

	assert.False(t, notified.Load())
	assert.Equal(t, 3, res.DealsFound)
	assert.Equal(t, 0, res.DealsSent)
	assert.Empty(t, res.Deals)
	assert.NotNil(t, res.Deals)
	assert.Empty(t, res.PreviewHTML)
	assert.False(t, res.Delivered)
	assert.Equal(t, domain.RunStatusOK, res.Status)
}

func TestRun_EmptyCatalogIsSkipped(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 500, "France": 0, "Germany": 500})
	e := extractorWith(map[string][]domain.DealRecord{"Italy": makeDeals("Italy", 90)})

	res, err := newOrchestrator(f, e, logOnlyNotifier()).Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	require.Len(t, res.Countries, 3)
	assert.True(t, res.Countries[1].Skipped)
	assert.Empty(t, res.Countries[1].Error)
	assert.Equal(t, 0, res.Countries[1].FetchedChars)
	assert.Equal(t, int32(2), e.calls.Load())
	assert.Equal(t, domain.RunStatusDegraded, res.Status)
}

func TestLastResult_TracksLatestRun(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 500, "France": 500, "Germany": 500})
	o := newOrchestrator(f, extractorWith(map[string][]domain.DealRecord{"Italy": makeDeals("Italy", 90)}), logOnlyNotifier())

	first, err := o.Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)
	second, err := o.Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	last, ok := o.LastResult()
	require.True(t, ok)
	assert.Equal(t, second.RunID, last.RunID)
	assert.NotEqual(t, first.RunID, last.RunID)
}
