// Package config holds the deal-finder service configuration.
package config

import (
	"net/url"
	"time"

	infraconfig "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/config"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	infraredis "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/redis"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/analyzer"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/fetcher"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/notifier"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/pipeline"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/scheduler"
)

// Default configuration values.
const (
	defaultServiceName = "deal-finder"
	defaultServicePort = 8080
	defaultVersion     = "0.1.0"

	defaultFetchTimeout    = 60 * time.Second
	defaultFirecrawlWait   = 5 * time.Second
	defaultBrowserSettle   = 2 * time.Second
	defaultReasonLanguage  = "Italian"
	defaultBreakerFailures = 5
	defaultBreakerTimeout  = 60 * time.Second
	defaultRunTimeout      = 15 * time.Minute

	// runtimeGatewayPath is appended to CODEWORDS_RUNTIME_URI to reach its
	// OpenAI-compatible gateway.
	runtimeGatewayPath = "run/gemini/v1"
)

// Config holds the application configuration.
type Config struct {
	Service        ServiceConfig        `yaml:"service"`
	Logging        logger.Config        `yaml:"logging"`
	Sites          []domain.CountrySite `yaml:"sites"`
	Fetcher        FetcherConfig        `yaml:"fetcher"`
	Analyzer       AnalyzerConfig       `yaml:"analyzer"`
	Notifier       NotifierConfig       `yaml:"notifier"`
	Redis          infraredis.Config    `yaml:"redis"`
	Pipeline       PipelineConfig       `yaml:"pipeline"`
	Schedule       ScheduleConfig       `yaml:"schedule"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Port        int      `env:"DEAL_FINDER_PORT" yaml:"port"`
	Debug       bool     `env:"APP_DEBUG"        yaml:"debug"`
	CORSOrigins []string `env:"CORS_ORIGINS"     yaml:"cors_origins"`
	// JWTSecret, when set, requires a bearer token on every /api route
	// except /api/health.
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// FetcherConfig selects and tunes the catalog fetcher.
type FetcherConfig struct {
	Provider  string          `env:"FETCHER_PROVIDER" yaml:"provider"`
	Timeout   time.Duration   `env:"FETCHER_TIMEOUT"  yaml:"timeout"`
	UserAgent string          `yaml:"user_agent"`
	Firecrawl FirecrawlConfig `yaml:"firecrawl"`
	Browser   BrowserConfig   `yaml:"browser"`
}

// FirecrawlConfig for the firecrawl provider.
type FirecrawlConfig struct {
	BaseURL string        `env:"FIRECRAWL_BASE_URL" yaml:"base_url"`
	APIKey  string        `env:"FIRECRAWL_API_KEY"  yaml:"api_key"`
	WaitFor time.Duration `yaml:"wait_for"`
}

// BrowserConfig for the browser provider.
type BrowserConfig struct {
	ExecPath string        `env:"CHROME_PATH" yaml:"exec_path"`
	Settle   time.Duration `yaml:"settle"`
}

// AnalyzerConfig selects the completion backend and shapes the prompt.
type AnalyzerConfig struct {
	Provider        string              `env:"ANALYZER_PROVIDER" yaml:"provider"`
	MinContentChars int                 `yaml:"min_content_chars"`
	MaxContentChars int                 `yaml:"max_content_chars"`
	Timeout         time.Duration       `yaml:"timeout"`
	MaxAttempts     int                 `yaml:"max_attempts"`
	ReasonLanguage  string              `yaml:"reason_language"`
	Brands          []string            `yaml:"brands"`
	Thresholds      analyzer.Thresholds `yaml:"thresholds"`
	OpenAI          OpenAIConfig        `yaml:"openai"`
	Anthropic       AnthropicConfig     `yaml:"anthropic"`
}

// OpenAIConfig for any OpenAI-compatible gateway.
type OpenAIConfig struct {
	BaseURL string `env:"OPENAI_BASE_URL" yaml:"base_url"`
	APIKey  string `env:"OPENAI_API_KEY"  yaml:"api_key"`
	Model   string `env:"OPENAI_MODEL"    yaml:"model"`
	// RuntimeURI is a hosting runtime that exposes a gateway under
	// run/gemini/v1. Used only when BaseURL is empty.
	RuntimeURI string `env:"CODEWORDS_RUNTIME_URI" yaml:"runtime_uri"`
}

// AnthropicConfig for the anthropic provider.
type AnthropicConfig struct {
	APIKey    string `env:"ANTHROPIC_API_KEY"  yaml:"api_key"`
	BaseURL   string `env:"ANTHROPIC_BASE_URL" yaml:"base_url"`
	Model     string `env:"ANTHROPIC_MODEL"    yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
}

// NotifierConfig selects the delivery transport.
type NotifierConfig struct {
	Transport string        `env:"NOTIFIER_TRANSPORT" yaml:"transport"`
	Resend    ResendConfig  `yaml:"resend"`
	Webhook   WebhookConfig `yaml:"webhook"`
	SMTP      SMTPConfig    `yaml:"smtp"`
	// RedisChannel receives digests for the redis transport.
	RedisChannel string `env:"NOTIFIER_REDIS_CHANNEL" yaml:"redis_channel"`
}

// ResendConfig for the resend transport.
type ResendConfig struct {
	APIKey  string `env:"RESEND_API_KEY" yaml:"api_key"`
	From    string `env:"RESEND_FROM"    yaml:"from"`
	BaseURL string `yaml:"base_url"`
}

// WebhookConfig for the webhook transport.
type WebhookConfig struct {
	URL     string            `env:"NOTIFIER_WEBHOOK_URL" yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// SMTPConfig for the smtp transport.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"     yaml:"host"`
	Port     int    `env:"SMTP_PORT"     yaml:"port"`
	Username string `env:"SMTP_USERNAME" yaml:"username"`
	Password string `env:"SMTP_PASSWORD" yaml:"password"`
	From     string `env:"SMTP_FROM"     yaml:"from"`
}

// PipelineConfig tunes runs.
type PipelineConfig struct {
	DefaultMaxResults int `yaml:"default_max_results"`
	Concurrency       int `yaml:"concurrency"`
}

// ScheduleConfig drives scheduled runs under serve.
type ScheduleConfig struct {
	Enabled    bool          `env:"SCHEDULE_ENABLED"   yaml:"enabled"`
	Cron       string        `env:"SCHEDULE_CRON"      yaml:"cron"`
	Recipient  string        `env:"SCHEDULE_RECIPIENT" yaml:"recipient"`
	MaxResults int           `yaml:"max_results"`
	RunTimeout time.Duration `yaml:"run_timeout"`
	Timezone   string        `env:"SCHEDULE_TIMEZONE" yaml:"timezone"`
}

// CircuitBreakerConfig is shared by every outbound HTTP dependency.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	cfg.Logging.SetDefaults()
	if len(cfg.Sites) == 0 {
		cfg.Sites = domain.DefaultSites()
	}
	setFetcherDefaults(&cfg.Fetcher)
	setAnalyzerDefaults(&cfg.Analyzer)
	setNotifierDefaults(&cfg.Notifier)
	setPipelineDefaults(&cfg.Pipeline)
	setScheduleDefaults(&cfg.Schedule)
	setCircuitBreakerDefaults(&cfg.CircuitBreaker)
}

// setServiceDefaults applies default values to ServiceConfig.
func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

// setFetcherDefaults applies default values to FetcherConfig. Firecrawl is
// preferred when it is reachable; otherwise pages are fetched directly.
func setFetcherDefaults(f *FetcherConfig) {
	if f.Provider == "" {
		f.Provider = fetcher.ProviderHTTP
		if f.Firecrawl.APIKey != "" || f.Firecrawl.BaseURL != "" {
			f.Provider = fetcher.ProviderFirecrawl
		}
	}
	if f.Timeout == 0 {
		f.Timeout = defaultFetchTimeout
	}
	if f.UserAgent == "" {
		f.UserAgent = fetcher.DefaultUserAgent
	}
	if f.Firecrawl.WaitFor == 0 {
		f.Firecrawl.WaitFor = defaultFirecrawlWait
	}
	if f.Browser.Settle == 0 {
		f.Browser.Settle = defaultBrowserSettle
	}
}

// setAnalyzerDefaults applies default values to AnalyzerConfig. The OpenAI
// base URL is left empty on purpose: an empty URL and key mean "not configured".
func setAnalyzerDefaults(a *AnalyzerConfig) {
	if a.Provider == "" {
		a.Provider = analyzer.ProviderOpenAI
	}
	if a.MinContentChars == 0 {
		a.MinContentChars = analyzer.DefaultMinContentChars
	}
	if a.MaxContentChars == 0 {
		a.MaxContentChars = analyzer.DefaultMaxContentChars
	}
	if a.Timeout == 0 {
		a.Timeout = analyzer.DefaultTimeout
	}
	if a.MaxAttempts == 0 {
		a.MaxAttempts = 1
	}
	if a.ReasonLanguage == "" {
		a.ReasonLanguage = defaultReasonLanguage
	}
	if len(a.Brands) == 0 {
		a.Brands = analyzer.DefaultBrands
	}
	if a.Thresholds == (analyzer.Thresholds{}) {
		a.Thresholds = analyzer.DefaultThresholds()
	}
	if a.OpenAI.Model == "" {
		a.OpenAI.Model = analyzer.DefaultOpenAIModel
	}
	if a.OpenAI.BaseURL == "" && a.OpenAI.RuntimeURI != "" {
		if joined, err := url.JoinPath(a.OpenAI.RuntimeURI, runtimeGatewayPath); err == nil {
			a.OpenAI.BaseURL = joined
		}
	}
	if a.Anthropic.Model == "" {
		a.Anthropic.Model = analyzer.DefaultAnthropicModel
	}
	if a.Anthropic.MaxTokens == 0 {
		a.Anthropic.MaxTokens = analyzer.DefaultAnthropicMaxTokens
	}
}

// setNotifierDefaults picks the transport from the credentials present when
// none is named.
func setNotifierDefaults(n *NotifierConfig) {
	if n.Transport == "" {
		switch {
		case n.Resend.APIKey != "":
			n.Transport = notifier.TransportResend
		case n.Webhook.URL != "":
			n.Transport = notifier.TransportWebhook
		case n.SMTP.Host != "":
			n.Transport = notifier.TransportSMTP
		default:
			n.Transport = notifier.TransportNone
		}
	}
	if n.Resend.From == "" {
		n.Resend.From = notifier.DefaultResendFrom
	}
	if n.SMTP.Port == 0 {
		n.SMTP.Port = 587
	}
	if n.SMTP.From == "" {
		n.SMTP.From = notifier.DefaultResendFrom
	}
	if n.RedisChannel == "" {
		n.RedisChannel = notifier.DefaultRedisChannel
	}
}

// setPipelineDefaults applies default values to PipelineConfig.
func setPipelineDefaults(p *PipelineConfig) {
	if p.DefaultMaxResults == 0 {
		p.DefaultMaxResults = pipeline.DefaultMaxResults
	}
}

// setScheduleDefaults applies default values to ScheduleConfig.
func setScheduleDefaults(s *ScheduleConfig) {
	if s.Cron == "" {
		s.Cron = scheduler.DefaultCron
	}
	if s.RunTimeout == 0 {
		s.RunTimeout = defaultRunTimeout
	}
}

// setCircuitBreakerDefaults applies default values to CircuitBreakerConfig.
func setCircuitBreakerDefaults(cb *CircuitBreakerConfig) {
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = defaultBreakerFailures
	}
	if cb.Timeout == 0 {
		cb.Timeout = defaultBreakerTimeout
	}
}
