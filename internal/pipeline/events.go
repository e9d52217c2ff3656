package pipeline

import (
	"context"
	"time"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/sse"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
)

// Progress event types.
const (
	EventRunStarted      = "run:started"
	EventCountryFetched  = "country:fetched"
	EventCountryAnalyzed = "country:analyzed"
	EventRunCompleted    = "run:completed"
)

// Publisher receives run progress events. Publish must not block.
type Publisher interface {
	Publish(ctx context.Context, event sse.Event) error
}

// RunStartedData is the payload for run:started events.
type RunStartedData struct {
	RunID      string    `json:"run_id"`
	Countries  []string  `json:"countries"`
	MaxResults int       `json:"max_results"`
	Timestamp  time.Time `json:"timestamp"`
}

// CountryData is the payload for country:fetched and country:analyzed events.
type CountryData struct {
	RunID   string `json:"run_id"`
	Country string `json:"country"`
	Chars   int    `json:"chars,omitempty"`
	Deals   int    `json:"deals,omitempty"`
	Dropped int    `json:"dropped,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RunCompletedData is the payload for run:completed events.
type RunCompletedData struct {
	RunID      string           `json:"run_id"`
	Status     domain.RunStatus `json:"status"`
	DealsFound int              `json:"deals_found"`
	DealsSent  int              `json:"deals_sent"`
	Delivered  bool             `json:"delivered"`
	DurationMs int64            `json:"duration_ms"`
}

// SetPublisher attaches a progress sink. Call before the first Run.
func (o *Orchestrator) SetPublisher(p Publisher) {
	o.events = p
}

func (o *Orchestrator) emit(ctx context.Context, eventType, runID string, data any) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(ctx, sse.Event{Type: eventType, ID: runID, Data: data}); err != nil {
		o.log.Debug("Progress event dropped",
			logger.String("event_type", eventType),
			logger.Error(err),
		)
	}
}
