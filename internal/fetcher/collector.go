package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
)

const maxPageBytes = 10 << 20

// CollectorConfig configures CollectorFetcher.
type CollectorConfig struct {
	UserAgent string
	Timeout   time.Duration
	MinChars  int
}

// CollectorFetcher downloads catalog pages directly with colly and converts
// the HTML locally. It sees only server-rendered markup.
type CollectorFetcher struct {
	cfg       CollectorConfig
	converter Converter
	log       logger.Logger
}

// NewCollectorFetcher builds a fetcher.
func NewCollectorFetcher(cfg CollectorConfig, log logger.Logger) *CollectorFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &CollectorFetcher{
		cfg:       cfg,
		converter: Converter{MinChars: cfg.MinChars},
		log:       log.With(logger.String("component", "collector_fetcher")),
	}
}

// Fetch implements Fetcher. A fresh collector is built per call so the
// request is bound to ctx.
func (f *CollectorFetcher) Fetch(ctx context.Context, url, country string) Result {
	started := time.Now()

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(f.cfg.UserAgent),
		colly.MaxBodySize(maxPageBytes),
		colly.AllowURLRevisit(),
	)
	if f.cfg.Timeout > 0 {
		c.SetRequestTimeout(f.cfg.Timeout)
	}

	var (
		body     string
		finalURL = url
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
	})
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
		finalURL = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: status %d: %w", url, r.StatusCode, err)
	})

	if visitErr := c.Visit(url); visitErr != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("fetch %s: %w", url, visitErr)
	}
	if fetchErr != nil {
		return failed(country, url, started, fetchErr)
	}

	text, convErr := f.converter.Convert(body, finalURL)
	if convErr != nil {
		return failed(country, url, started, convErr)
	}

	f.log.Debug("Catalog fetched",
		logger.String("country", country),
		logger.Int("html_bytes", len(body)),
		logger.Int("chars", len(text)),
	)
	return succeeded(country, url, text, started)
}
