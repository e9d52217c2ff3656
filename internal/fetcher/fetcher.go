// Package fetcher retrieves marketplace catalog pages as markdown-like text.
//
// Every implementation reports failures inside Result instead of returning an
// error, so that one country's outage never aborts a run.
package fetcher

import (
	"context"
	"time"
)

// Result of fetching one catalog page. Text is empty whenever Err is set. An
// empty Text with no Err is a page that loaded but yielded nothing; callers
// skip it like any other short catalog.
type Result struct {
	Country  string
	URL      string
	Text     string
	Err      error
	Duration time.Duration
}

// Fetcher retrieves the catalog page at url for the given country label.
type Fetcher interface {
	Fetch(ctx context.Context, url, country string) Result
}

// Provider names accepted by configuration.
const (
	ProviderFirecrawl = "firecrawl"
	ProviderHTTP      = "http"
	ProviderBrowser   = "browser"
)

// DefaultUserAgent is sent by the http and browser providers.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

func failed(country, url string, started time.Time, err error) Result {
	return Result{Country: country, URL: url, Err: err, Duration: time.Since(started)}
}

func succeeded(country, url, text string, started time.Time) Result {
	return Result{Country: country, URL: url, Text: text, Duration: time.Since(started)}
}
