// Package pipeline runs one deal-finder pass: fetch every catalog, extract
// deals, rank them and send the digest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/analyzer"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/fetcher"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/notifier"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/telemetry"
)

var (
	// ErrInvalidRecipient is returned for an empty or malformed recipient address.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrInvalidMaxResults is returned for a negative result count.
	ErrInvalidMaxResults = errors.New("max results must not be negative")
)

const (
	DefaultMaxResults   = 20
	DefaultFetchTimeout = 60 * time.Second
)

// Extractor is the deal extraction stage.
type Extractor interface {
	Extract(ctx context.Context, text, country string) analyzer.Result
	Configured() bool
	MinContentChars() int
}

// Notifier is the delivery stage.
type Notifier interface {
	Notify(ctx context.Context, recipient string, deals []domain.DealRecord) notifier.Outcome
	TransportName() string
}

// Config controls an Orchestrator.
type Config struct {
	Sites []domain.CountrySite
	// DefaultMaxResults applies when a request leaves MaxResults unset.
	DefaultMaxResults int
	FetchTimeout      time.Duration
	// Concurrency caps in-flight tasks per stage. Zero means one per country.
	Concurrency int
}

// Request is one run's input.
type Request struct {
	Recipient string
	// MaxResults caps the deals sent. Nil means Config.DefaultMaxResults;
	// zero sends nothing.
	MaxResults *int
	Filters    domain.Filters
}

// Orchestrator is safe for concurrent use. Runs do not share state except the
// last result.
type Orchestrator struct {
	cfg       Config
	fetcher   fetcher.Fetcher
	extractor Extractor
	notifier  Notifier
	telemetry *telemetry.Provider
	validate  *validator.Validate
	log       logger.Logger
	events    Publisher
	now       func() time.Time

	mu   sync.RWMutex
	last *domain.RunResult
}

// New builds an Orchestrator. A nil telemetry provider gets a private one.
func New(cfg Config, f fetcher.Fetcher, e Extractor, n Notifier, tp *telemetry.Provider, log logger.Logger) *Orchestrator {
	if len(cfg.Sites) == 0 {
		cfg.Sites = domain.DefaultSites()
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = DefaultMaxResults
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if tp == nil {
		tp = telemetry.NewProvider()
	}

	return &Orchestrator{
		cfg:       cfg,
		fetcher:   f,
		extractor: e,
		notifier:  n,
		telemetry: tp,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       log.With(logger.String("component", "pipeline")),
		now:       time.Now,
	}
}

// Sites returns the configured catalogs.
func (o *Orchestrator) Sites() []domain.CountrySite {
	return o.cfg.Sites
}

// Configured reports whether runs can analyze anything.
func (o *Orchestrator) Configured() bool {
	return o.extractor.Configured()
}

// TransportName reports the delivery transport in use.
func (o *Orchestrator) TransportName() string {
	return o.notifier.TransportName()
}

// LastResult returns the most recent completed run.
func (o *Orchestrator) LastResult() (domain.RunResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.last == nil {
		return domain.RunResult{}, false
	}
	return *o.last, true
}

func (o *Orchestrator) checkRequest(req Request) (int, error) {
	recipient := strings.TrimSpace(req.Recipient)
	if err := o.validate.Var(recipient, "required,email"); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRecipient, req.Recipient)
	}
	if req.MaxResults == nil {
		return o.cfg.DefaultMaxResults, nil
	}
	if *req.MaxResults < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMaxResults, *req.MaxResults)
	}
	return *req.MaxResults, nil
}

func (o *Orchestrator) selectSites(f domain.Filters) []domain.CountrySite {
	sites := make([]domain.CountrySite, 0, len(o.cfg.Sites))
	for _, s := range o.cfg.Sites {
		if f.IncludesCountry(s) {
			sites = append(sites, s)
		}
	}
	return sites
}

func (o *Orchestrator) store(res domain.RunResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = &res
}
