package notifier

import (
	"context"
	"net/http"
	"strings"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/circuitbreaker"
	infrahttp "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/http"
)

const (
	DefaultResendURL  = "https://api.resend.com"
	DefaultResendFrom = "Vinted Deals <onboarding@resend.dev>"
)

// ResendConfig configures ResendTransport.
type ResendConfig struct {
	APIKey  string
	From    string
	BaseURL string
}

// ResendTransport sends the digest as an email through the Resend API.
type ResendTransport struct {
	cfg     ResendConfig
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewResendTransport builds the transport. breaker may be nil.
func NewResendTransport(cfg ResendConfig, client *http.Client, breaker *circuitbreaker.Breaker) *ResendTransport {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultResendURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.From == "" {
		cfg.From = DefaultResendFrom
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{Name: TransportResend})
	}
	return &ResendTransport{cfg: cfg, client: client, breaker: breaker}
}

// Name implements Transport.
func (t *ResendTransport) Name() string { return TransportResend }

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send implements Transport.
func (t *ResendTransport) Send(ctx context.Context, d Digest) error {
	body := resendEmail{
		From:    t.cfg.From,
		To:      []string{d.Recipient},
		Subject: d.Subject,
		HTML:    d.HTML,
	}
	return t.breaker.Execute(ctx, func() error {
		return infrahttp.PostJSON(ctx, t.client, t.cfg.BaseURL+"/emails", infrahttp.Bearer(t.cfg.APIKey), body, nil)
	})
}

// WebhookConfig configures WebhookTransport.
type WebhookConfig struct {
	URL string
	// Headers are added to every request, e.g. a shared secret.
	Headers map[string]string
}

// WebhookTransport POSTs the digest as JSON to an arbitrary endpoint.
type WebhookTransport struct {
	cfg     WebhookConfig
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewWebhookTransport builds the transport. breaker may be nil.
func NewWebhookTransport(cfg WebhookConfig, client *http.Client, breaker *circuitbreaker.Breaker) *WebhookTransport {
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{Name: TransportWebhook})
	}
	return &WebhookTransport{cfg: cfg, client: client, breaker: breaker}
}

// Name implements Transport.
func (t *WebhookTransport) Name() string { return TransportWebhook }

type webhookPayload struct {
	Digest
	DealsSent int `json:"deals_sent"`
}

// Send implements Transport.
func (t *WebhookTransport) Send(ctx context.Context, d Digest) error {
	payload := webhookPayload{Digest: d, DealsSent: len(d.Deals)}
	return t.breaker.Execute(ctx, func() error {
		return infrahttp.PostJSON(ctx, t.client, t.cfg.URL, t.cfg.Headers, payload, nil)
	})
}
