package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	infrahttp "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/http"
	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
)

// DefaultFirecrawlURL is the hosted Firecrawl API.
const DefaultFirecrawlURL = "https://api.firecrawl.dev"

var errScrapeRejected = errors.New("firecrawl reported failure")

// FirecrawlConfig configures FirecrawlFetcher.
type FirecrawlConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one scrape, including Firecrawl's own page load.
	Timeout time.Duration
	// WaitFor lets client-side rendering settle before Firecrawl captures the page.
	WaitFor time.Duration
}

// FirecrawlFetcher scrapes pages through the Firecrawl /v1/scrape API and
// returns its markdown rendering.
type FirecrawlFetcher struct {
	cfg    FirecrawlConfig
	client *http.Client
	log    logger.Logger
}

// NewFirecrawlFetcher builds a fetcher. client may be shared with other components.
func NewFirecrawlFetcher(cfg FirecrawlConfig, client *http.Client, log logger.Logger) *FirecrawlFetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFirecrawlURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &FirecrawlFetcher{
		cfg:    cfg,
		client: client,
		log:    log.With(logger.String("component", "firecrawl_fetcher")),
	}
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int64    `json:"waitFor,omitempty"`
	Timeout         int64    `json:"timeout,omitempty"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		Markdown string `json:"markdown"`
	} `json:"data"`
}

// Fetch implements Fetcher.
func (f *FirecrawlFetcher) Fetch(ctx context.Context, url, country string) Result {
	started := time.Now()

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	req := scrapeRequest{
		URL:             url,
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		WaitFor:         f.cfg.WaitFor.Milliseconds(),
		Timeout:         f.cfg.Timeout.Milliseconds(),
	}

	var resp scrapeResponse
	if err := infrahttp.PostJSON(ctx, f.client, f.cfg.BaseURL+"/v1/scrape", infrahttp.Bearer(f.cfg.APIKey), req, &resp); err != nil {
		return failed(country, url, started, fmt.Errorf("firecrawl scrape %s: %w", url, err))
	}

	if !resp.Success {
		return failed(country, url, started, fmt.Errorf("%w: %s", errScrapeRejected, resp.Error))
	}

	result := succeeded(country, url, strings.TrimSpace(resp.Data.Markdown), started)
	f.log.Debug("Catalog scraped",
		logger.String("country", country),
		logger.Int("chars", len(result.Text)),
		logger.Duration("duration", result.Duration),
	)
	return result
}
