// Package scheduler triggers pipeline runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/pipeline"
)

const (
	DefaultCron       = "0 8 * * *"
	DefaultRunTimeout = 15 * time.Minute
)

var errNoRecipient = errors.New("scheduled runs need a recipient")

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (domain.RunResult, error)
}

// Config controls Scheduler.
type Config struct {
	Cron      string
	Recipient string
	// MaxResults caps each digest. Zero leaves it to the orchestrator default.
	MaxResults int
	Filters    domain.Filters
	// RunTimeout bounds each scheduled run.
	RunTimeout time.Duration
	Location   *time.Location
}

// Scheduler runs the pipeline on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cfg     Config
	runner  Runner
	log     logger.Logger
	cron    *cron.Cron
	entryID cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// New validates the schedule and registers the job. Call Start to begin.
func New(cfg Config, runner Runner, log logger.Logger) (*Scheduler, error) {
	if cfg.Cron == "" {
		cfg.Cron = DefaultCron
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Recipient == "" {
		return nil, errNoRecipient
	}

	log = log.With(logger.String("component", "scheduler"))
	cronLog := cronLogger{log: log}

	// Standard 5-field cron plus @daily style descriptors.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cfg: cfg, runner: runner, log: log, cron: c, ctx: ctx, cancel: cancel}

	id, err := c.AddFunc(cfg.Cron, s.tick)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Cron, err)
	}
	s.entryID = id

	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started",
		logger.String("cron", s.cfg.Cron),
		logger.Time("next_run", s.Next()),
	)
}

// Stop cancels any in-flight run and waits for it to return.
func (s *Scheduler) Stop() {
	s.log.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// Next is the next scheduled run time. Zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RunTimeout)
	defer cancel()

	s.log.Info("Scheduled run starting")

	req := pipeline.Request{Recipient: s.cfg.Recipient, Filters: s.cfg.Filters}
	if s.cfg.MaxResults > 0 {
		req.MaxResults = new(s.cfg.MaxResults)
	}

	res, err := s.runner.Run(ctx, req)
	if err != nil {
		s.log.Error("Scheduled run rejected", logger.Error(err))
		return
	}

	s.log.Info("Scheduled run finished",
		logger.String("run_id", res.RunID),
		logger.String("status", string(res.Status)),
		logger.Int("deals_sent", res.DealsSent),
	)
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(keysAndValues []any) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
