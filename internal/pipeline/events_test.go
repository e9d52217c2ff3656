package pipeline_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/sse"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/pipeline"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event sse.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range p.events {
		counts[e.Type]++
	}
	return counts
}

func TestRun_PublishesProgress(t *testing.T) {
	t.Parallel()

	f := textFetcher(map[string]int{"Italy": 5000, "France": 50, "Germany": 8000})
	e := extractorWith(map[string][]domain.DealRecord{
		"Italy":   makeDeals("Italy", 90),
		"Germany": makeDeals("Germany", 85),
	})
	pub := &recordingPublisher{}
	o := newOrchestrator(f, e, logOnlyNotifier())
	o.SetPublisher(pub)

	res, err := o.Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	counts := pub.types()
	assert.Equal(t, 1, counts[pipeline.EventRunStarted])
	assert.Equal(t, 3, counts[pipeline.EventCountryFetched])
	assert.Equal(t, 3, counts[pipeline.EventCountryAnalyzed])
	assert.Equal(t, 1, counts[pipeline.EventRunCompleted])

	pub.mu.Lock()
	defer pub.mu.Unlock()
	first, last := pub.events[0], pub.events[len(pub.events)-1]
	assert.Equal(t, pipeline.EventRunStarted, first.Type)
	assert.Equal(t, res.RunID, first.ID)
	require.Equal(t, pipeline.EventRunCompleted, last.Type)
	done, ok := last.Data.(pipeline.RunCompletedData)
	require.True(t, ok)
	assert.Equal(t, domain.RunStatusDegraded, done.Status)
	assert.Equal(t, 2, done.DealsSent)
}

func TestRun_MisconfiguredPublishesOnlyLifecycle(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	o := newOrchestrator(textFetcher(nil), &fakeExtractor{}, logOnlyNotifier())
	o.SetPublisher(pub)

	_, err := o.Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		pipeline.EventRunStarted:   1,
		pipeline.EventRunCompleted: 1,
	}, pub.types())
}
