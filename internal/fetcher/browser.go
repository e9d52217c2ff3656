package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
)

// BrowserConfig configures BrowserFetcher.
type BrowserConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Settle is extra time after the body is ready for client-side rendering.
	Settle time.Duration
	// ExecPath overrides the Chrome binary. Empty uses chromedp's lookup.
	ExecPath string
	MinChars int
}

// BrowserFetcher renders catalog pages in headless Chrome, for catalogs that
// only produce listings client-side.
type BrowserFetcher struct {
	cfg       BrowserConfig
	converter Converter
	log       logger.Logger
}

// NewBrowserFetcher builds a fetcher. Chrome is started per Fetch call.
func NewBrowserFetcher(cfg BrowserConfig, log logger.Logger) *BrowserFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &BrowserFetcher{
		cfg:       cfg,
		converter: Converter{MinChars: cfg.MinChars},
		log:       log.With(logger.String("component", "browser_fetcher")),
	}
}

func (f *BrowserFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(f.cfg.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	if f.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ExecPath))
	}
	return opts
}

// Fetch implements Fetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context, url, country string) Result {
	started := time.Now()

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, f.allocatorOptions()...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var html string
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.cfg.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return failed(country, url, started, fmt.Errorf("render %s: %w", url, err))
	}

	text, convErr := f.converter.Convert(html, url)
	if convErr != nil {
		return failed(country, url, started, convErr)
	}

	f.log.Debug("Catalog rendered",
		logger.String("country", country),
		logger.Int("chars", len(text)),
	)
	return succeeded(country, url, text, started)
}
