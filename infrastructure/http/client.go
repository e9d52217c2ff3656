// Package http builds the outbound HTTP clients used for scraping APIs,
// completion gateways and email providers.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	infraerrors "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/errors"
)

const (
	DefaultTimeout               = 30 * time.Second
	DefaultMaxIdleConns          = 100
	DefaultMaxIdleConnsPerHost   = 10
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultExpectContinueTimeout = 1 * time.Second

	// maxResponseBody bounds decoded JSON responses.
	maxResponseBody = 20 << 20
)

// ClientConfig tunes NewClient. Zero fields take the defaults above.
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConnsPerHost int
	// ResponseHeaderTimeout of zero leaves it to Timeout.
	ResponseHeaderTimeout time.Duration
}

// NewClient returns an *http.Client with pooled keep-alive connections.
// A nil cfg uses every default.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	perHost := cfg.MaxIdleConnsPerHost
	if perHost == 0 {
		perHost = DefaultMaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          DefaultMaxIdleConns,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		ExpectContinueTimeout: DefaultExpectContinueTimeout,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
	}

	return &http.Client{Timeout: timeout, Transport: transport}
}

// PostJSON marshals body, POSTs it to url with the given headers and decodes a
// 2xx JSON response into out (skipped when out is nil). Non-2xx responses come
// back as *infraerrors.HTTPError.
func PostJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		return fmt.Errorf("marshal request: %w", marshalErr)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if reqErr != nil {
		return fmt.Errorf("create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, doErr := client.Do(req)
	if doErr != nil {
		return fmt.Errorf("send request: %w", doErr)
	}
	defer resp.Body.Close()

	if statusErr := infraerrors.ParseHTTPError(resp); statusErr != nil {
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	return nil
}

// Bearer formats an Authorization header map for token.
func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
