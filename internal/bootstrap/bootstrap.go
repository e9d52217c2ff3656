// Package bootstrap builds the deal-finder component graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/circuitbreaker"
	infrahttp "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/http"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	infraredis "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/sse"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/analyzer"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/config"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/fetcher"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/notifier"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/pipeline"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/telemetry"
)

// Components is the wired application.
type Components struct {
	Config       *config.Config
	Logger       logger.Logger
	Telemetry    *telemetry.Provider
	Orchestrator *pipeline.Orchestrator
	Analyzer     *analyzer.Analyzer
	Notifier     *notifier.Notifier
	// Events streams run progress to SSE subscribers.
	Events *sse.Broker

	redis *goredis.Client
}

// Build wires every component. It fails only on configuration that cannot
// work at all, such as an unreachable Redis for the redis transport.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*Components, error) {
	tp := telemetry.NewProvider()
	client := infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: max(cfg.Fetcher.Timeout, cfg.Analyzer.Timeout)})

	c := &Components{Config: cfg, Logger: log, Telemetry: tp}
	breakers := breakerFactory{cfg: cfg.CircuitBreaker, telemetry: tp, log: log}

	f, err := newFetcher(cfg, client, log)
	if err != nil {
		return nil, err
	}

	completer := newCompleter(cfg.Analyzer, client, breakers)
	if completer == nil {
		log.Warn("No completion backend configured, runs will report misconfigured",
			logger.String("provider", cfg.Analyzer.Provider))
	}
	c.Analyzer = analyzer.New(analyzer.Config{
		MinContentChars: cfg.Analyzer.MinContentChars,
		MaxContentChars: cfg.Analyzer.MaxContentChars,
		Timeout:         cfg.Analyzer.Timeout,
		MaxAttempts:     cfg.Analyzer.MaxAttempts,
		Prompt: analyzer.PromptConfig{
			Thresholds:     cfg.Analyzer.Thresholds,
			Brands:         cfg.Analyzer.Brands,
			ReasonLanguage: cfg.Analyzer.ReasonLanguage,
		},
	}, completer, log)

	transport, err := c.newTransport(ctx, client, breakers)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(cfg.Sites))
	for _, s := range cfg.Sites {
		if s.Code != "" {
			codes = append(codes, s.Code)
		}
	}
	c.Notifier = notifier.New(notifier.NewRenderer(codes), transport, log)

	c.Orchestrator = pipeline.New(pipeline.Config{
		Sites:             cfg.Sites,
		DefaultMaxResults: cfg.Pipeline.DefaultMaxResults,
		FetchTimeout:      cfg.Fetcher.Timeout,
		Concurrency:       cfg.Pipeline.Concurrency,
	}, f, c.Analyzer, c.Notifier, tp, log)
	c.Events = sse.NewBroker(log)
	c.Orchestrator.SetPublisher(c.Events)

	log.Info("Components ready",
		logger.String("fetcher", cfg.Fetcher.Provider),
		logger.String("analyzer", cfg.Analyzer.Provider),
		logger.Bool("analyzer_configured", completer != nil),
		logger.String("transport", c.Notifier.TransportName()),
		logger.Int("sites", len(cfg.Sites)),
	)

	return c, nil
}

// Close releases connections opened by Build.
func (c *Components) Close() error {
	if c.Events != nil {
		c.Events.Close()
	}
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

func newFetcher(cfg *config.Config, client *http.Client, log logger.Logger) (fetcher.Fetcher, error) {
	fc := cfg.Fetcher
	minChars := cfg.Analyzer.MinContentChars

	switch fc.Provider {
	case fetcher.ProviderFirecrawl:
		return fetcher.NewFirecrawlFetcher(fetcher.FirecrawlConfig{
			BaseURL: fc.Firecrawl.BaseURL,
			APIKey:  fc.Firecrawl.APIKey,
			Timeout: fc.Timeout,
			WaitFor: fc.Firecrawl.WaitFor,
		}, client, log), nil
	case fetcher.ProviderHTTP:
		return fetcher.NewCollectorFetcher(fetcher.CollectorConfig{
			UserAgent: fc.UserAgent,
			Timeout:   fc.Timeout,
			MinChars:  minChars,
		}, log), nil
	case fetcher.ProviderBrowser:
		return fetcher.NewBrowserFetcher(fetcher.BrowserConfig{
			UserAgent: fc.UserAgent,
			Timeout:   fc.Timeout,
			Settle:    fc.Browser.Settle,
			ExecPath:  fc.Browser.ExecPath,
			MinChars:  minChars,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown fetcher provider %q", fc.Provider)
	}
}

// newCompleter returns nil when the selected provider has no credentials.
func newCompleter(ac config.AnalyzerConfig, client *http.Client, breakers breakerFactory) analyzer.Completer {
	switch ac.Provider {
	case analyzer.ProviderAnthropic:
		cfg := analyzer.AnthropicConfig{
			APIKey:    ac.Anthropic.APIKey,
			BaseURL:   ac.Anthropic.BaseURL,
			Model:     ac.Anthropic.Model,
			MaxTokens: ac.Anthropic.MaxTokens,
		}
		if !cfg.Configured() {
			return nil
		}
		return analyzer.NewAnthropicCompleter(cfg, client, breakers.new(analyzer.ProviderAnthropic))
	default:
		cfg := analyzer.OpenAIConfig{
			BaseURL: ac.OpenAI.BaseURL,
			APIKey:  ac.OpenAI.APIKey,
			Model:   ac.OpenAI.Model,
		}
		if !cfg.Configured() {
			return nil
		}
		return analyzer.NewOpenAICompleter(cfg, client, breakers.new(analyzer.ProviderOpenAI))
	}
}

var errNoTransport = errors.New("unknown notifier transport")

// newTransport returns nil for the log-only transport.
func (c *Components) newTransport(ctx context.Context, client *http.Client, breakers breakerFactory) (notifier.Transport, error) {
	nc := c.Config.Notifier

	switch nc.Transport {
	case notifier.TransportNone:
		return nil, nil //nolint:nilnil // nil transport means log only
	case notifier.TransportResend:
		return notifier.NewResendTransport(notifier.ResendConfig{
			APIKey:  nc.Resend.APIKey,
			From:    nc.Resend.From,
			BaseURL: nc.Resend.BaseURL,
		}, client, breakers.new(notifier.TransportResend)), nil
	case notifier.TransportWebhook:
		return notifier.NewWebhookTransport(notifier.WebhookConfig{
			URL:     nc.Webhook.URL,
			Headers: nc.Webhook.Headers,
		}, client, breakers.new(notifier.TransportWebhook)), nil
	case notifier.TransportSMTP:
		return notifier.NewSMTPTransport(notifier.SMTPConfig{
			Host:     nc.SMTP.Host,
			Port:     nc.SMTP.Port,
			Username: nc.SMTP.Username,
			Password: nc.SMTP.Password,
			From:     nc.SMTP.From,
		}), nil
	case notifier.TransportRedis:
		rc, err := infraredis.NewClient(ctx, c.Config.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis transport: %w", err)
		}
		c.redis = rc
		return notifier.NewRedisTransport(rc, nc.RedisChannel), nil
	default:
		return nil, fmt.Errorf("%w: %q", errNoTransport, nc.Transport)
	}
}

// breakerFactory gives each outbound dependency its own breaker that reports
// state changes to logs and metrics.
type breakerFactory struct {
	cfg       config.CircuitBreakerConfig
	telemetry *telemetry.Provider
	log       logger.Logger
}

func (f breakerFactory) new(name string) *circuitbreaker.Breaker {
	f.telemetry.SetBreakerState(name, int(circuitbreaker.StateClosed))

	return circuitbreaker.New(circuitbreaker.Config{
		Name:             name,
		FailureThreshold: f.cfg.FailureThreshold,
		Timeout:          f.cfg.Timeout,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			f.telemetry.SetBreakerState(name, int(to))
			f.log.Warn("Circuit breaker state changed",
				logger.String("dependency", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
}

// RunTimeout bounds a scheduled or CLI run: every stage timeout plus slack.
func RunTimeout(cfg *config.Config) time.Duration {
	attempts := time.Duration(max(cfg.Analyzer.MaxAttempts, 1))
	return cfg.Fetcher.Timeout + attempts*cfg.Analyzer.Timeout + time.Minute
}
