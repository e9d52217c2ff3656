package config

import (
	"fmt"
	"time"

	infraconfig "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/config"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/analyzer"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/fetcher"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/notifier"
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := infraconfig.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}

	validators := []func() error{
		c.validateSites,
		c.validateFetcher,
		c.validateAnalyzer,
		c.validateNotifier,
		c.validateSchedule,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateSites() error {
	if len(c.Sites) == 0 {
		return &infraconfig.ValidationError{Field: "sites", Message: "at least one site is required"}
	}
	for i, s := range c.Sites {
		if err := infraconfig.ValidateRequired(fmt.Sprintf("sites[%d].country", i), s.Country); err != nil {
			return err
		}
		if err := infraconfig.ValidateURL(fmt.Sprintf("sites[%d].url", i), s.URL); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateFetcher() error {
	f := c.Fetcher
	if err := infraconfig.ValidateOneOf("fetcher.provider", f.Provider,
		fetcher.ProviderFirecrawl, fetcher.ProviderHTTP, fetcher.ProviderBrowser); err != nil {
		return err
	}
	if f.Timeout <= 0 {
		return &infraconfig.ValidationError{Field: "fetcher.timeout", Message: "must be positive"}
	}
	if f.Provider == fetcher.ProviderFirecrawl && f.Firecrawl.BaseURL == "" {
		return infraconfig.ValidateRequired("fetcher.firecrawl.api_key", f.Firecrawl.APIKey)
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	a := c.Analyzer
	if err := infraconfig.ValidateOneOf("analyzer.provider", a.Provider,
		analyzer.ProviderOpenAI, analyzer.ProviderAnthropic); err != nil {
		return err
	}
	if a.MinContentChars < 0 || a.MaxContentChars <= a.MinContentChars {
		return &infraconfig.ValidationError{
			Field:   "analyzer.max_content_chars",
			Message: "must be greater than analyzer.min_content_chars",
		}
	}
	if a.MaxAttempts < 1 {
		return &infraconfig.ValidationError{Field: "analyzer.max_attempts", Message: "must be at least 1"}
	}
	if a.OpenAI.BaseURL != "" {
		if err := infraconfig.ValidateURL("analyzer.openai.base_url", a.OpenAI.BaseURL); err != nil {
			return err
		}
	}
	return validateThresholds(a.Thresholds)
}

func validateThresholds(t analyzer.Thresholds) error {
	if t.ExceptionalAnyMax <= 0 || t.ExceptionalDesignerMax <= 0 || t.GreatAnyMax <= 0 || t.GreatBrandMax <= 0 {
		return &infraconfig.ValidationError{Field: "analyzer.thresholds", Message: "all thresholds must be positive"}
	}
	if t.ExceptionalAnyMax > t.GreatAnyMax {
		return &infraconfig.ValidationError{
			Field:   "analyzer.thresholds.exceptional_any_max",
			Message: "must not exceed great_any_max",
		}
	}
	if t.ExceptionalDesignerMax > t.GreatBrandMax {
		return &infraconfig.ValidationError{
			Field:   "analyzer.thresholds.exceptional_designer_max",
			Message: "must not exceed great_brand_max",
		}
	}
	return nil
}

func (c *Config) validateNotifier() error {
	n := c.Notifier
	if err := infraconfig.ValidateOneOf("notifier.transport", n.Transport,
		notifier.TransportNone, notifier.TransportResend, notifier.TransportWebhook,
		notifier.TransportSMTP, notifier.TransportRedis); err != nil {
		return err
	}

	switch n.Transport {
	case notifier.TransportResend:
		return infraconfig.ValidateRequired("notifier.resend.api_key", n.Resend.APIKey)
	case notifier.TransportWebhook:
		return infraconfig.ValidateURL("notifier.webhook.url", n.Webhook.URL)
	case notifier.TransportSMTP:
		if err := infraconfig.ValidateRequired("notifier.smtp.host", n.SMTP.Host); err != nil {
			return err
		}
		return infraconfig.ValidatePort("notifier.smtp.port", n.SMTP.Port)
	case notifier.TransportRedis:
		return infraconfig.ValidateRequired("redis.address", c.Redis.Address)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	s := c.Schedule
	if !s.Enabled {
		return nil
	}
	if err := infraconfig.ValidateRequired("schedule.recipient", s.Recipient); err != nil {
		return err
	}
	if s.MaxResults < 0 {
		return &infraconfig.ValidationError{Field: "schedule.max_results", Message: "must not be negative"}
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return &infraconfig.ValidationError{Field: "schedule.timezone", Message: err.Error()}
		}
	}
	return nil
}
