// Package analyzer turns catalog text into validated deal records by asking a
// language model and repairing what comes back.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/retry"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
)

// ErrNotConfigured is returned by every Extract call when no completion
// backend is configured.
var ErrNotConfigured = errors.New("no completion backend configured")

const (
	DefaultMinContentChars = 100
	DefaultMaxContentChars = 60000
	DefaultTimeout         = 2 * time.Minute
)

// Config controls an Analyzer.
type Config struct {
	MinContentChars int
	MaxContentChars int
	Prompt          PromptConfig
	// Timeout bounds one completion attempt.
	Timeout time.Duration
	// MaxAttempts above 1 retries transient completion errors.
	MaxAttempts int
}

// Result of analyzing one country's catalog. Deals is empty whenever Err is
// set or the text was Skipped.
type Result struct {
	Country string
	Deals   []domain.DealRecord
	// Dropped counts entries that failed validation.
	Dropped int
	// Skipped is set when the text was too short to be worth a completion call.
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	cfg       Config
	completer Completer
	validate  *validator.Validate
	log       logger.Logger
}

// New builds an Analyzer. A nil completer yields an analyzer whose Extract
// reports ErrNotConfigured.
func New(cfg Config, completer Completer, log logger.Logger) *Analyzer {
	if cfg.MinContentChars <= 0 {
		cfg.MinContentChars = DefaultMinContentChars
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = DefaultMaxContentChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Prompt.Thresholds == (Thresholds{}) {
		cfg.Prompt.Thresholds = DefaultThresholds()
	}

	return &Analyzer{
		cfg:       cfg,
		completer: completer,
		validate:  NewValidator(),
		log:       log.With(logger.String("component", "analyzer")),
	}
}

// Configured reports whether a completion backend is available.
func (a *Analyzer) Configured() bool {
	return a.completer != nil
}

// MinContentChars is the threshold below which Extract skips the model.
func (a *Analyzer) MinContentChars() int {
	return a.cfg.MinContentChars
}

// Extract finds deals in text for the given country. It never panics on a
// bad completion and never returns partially-valid records.
func (a *Analyzer) Extract(ctx context.Context, text, country string) Result {
	started := time.Now()
	res := Result{Country: country}
	log := a.log.With(logger.String("country", country))

	if utf8.RuneCountInString(text) < a.cfg.MinContentChars {
		log.Warn("Catalog text too short, skipping analysis", logger.Int("chars", utf8.RuneCountInString(text)))
		res.Skipped = true
		return res
	}

	if a.completer == nil {
		log.Warn("Skipping analysis", logger.Error(ErrNotConfigured))
		res.Err = ErrNotConfigured
		return res
	}

	system := BuildSystemPrompt(a.cfg.Prompt, country)
	user := BuildUserPrompt(Truncate(text, a.cfg.MaxContentChars))

	raw, err := a.complete(ctx, system, user)
	if err != nil {
		log.Error("Completion failed", logger.Error(err))
		res.Err = fmt.Errorf("complete %s: %w", country, err)
		res.Duration = time.Since(started)
		return res
	}

	deals, rejected, err := ParseDeals(raw, country, a.validate)
	res.Duration = time.Since(started)
	if err != nil {
		log.Error("Unusable completion", logger.Error(err), logger.Int("response_chars", len(raw)))
		res.Err = err
		return res
	}

	for _, r := range rejected {
		log.Debug("Dropped invalid deal", logger.Int("index", r.Index), logger.Error(r.Reason))
	}

	res.Deals = deals
	res.Dropped = len(rejected)

	log.Info("Catalog analyzed",
		logger.Int("deals", len(deals)),
		logger.Int("dropped", len(rejected)),
		logger.Duration("duration", res.Duration),
	)
	return res
}

func (a *Analyzer) complete(ctx context.Context, system, user string) (string, error) {
	var raw string

	err := retry.Retry(ctx, retry.Config{MaxAttempts: a.cfg.MaxAttempts, InitialDelay: time.Second}, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()

		out, err := a.completer.Complete(attemptCtx, system, user)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})

	return raw, err
}
