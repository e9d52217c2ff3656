// Package notifier renders the deal digest and hands it to a delivery
// transport. Delivery problems are reported, never raised.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
)

// ErrDeliveryFailed wraps every transport error in Outcome.Err.
var ErrDeliveryFailed = errors.New("digest delivery failed")

// Transport names accepted by configuration.
const (
	TransportNone    = "none"
	TransportResend  = "resend"
	TransportWebhook = "webhook"
	TransportSMTP    = "smtp"
	TransportRedis   = "redis"
)

// Digest is what a transport delivers.
type Digest struct {
	Recipient string              `json:"recipient"`
	Subject   string              `json:"subject"`
	HTML      string              `json:"html"`
	Deals     []domain.DealRecord `json:"deals"`
	SentAt    time.Time           `json:"sent_at"`
}

// Transport delivers a rendered digest.
type Transport interface {
	Name() string
	Send(ctx context.Context, d Digest) error
}

// Outcome of one Notify call. HTML is set whenever there was something to
// render, even if delivery failed.
type Outcome struct {
	HTML      string
	Subject   string
	Delivered bool
	Err       error
}

// Notifier is safe for concurrent use.
type Notifier struct {
	renderer  *Renderer
	transport Transport
	log       logger.Logger
	now       func() time.Time
}

// New builds a Notifier. A nil transport only logs the digest.
func New(renderer *Renderer, transport Transport, log logger.Logger) *Notifier {
	if renderer == nil {
		renderer = NewRenderer(nil)
	}
	return &Notifier{
		renderer:  renderer,
		transport: transport,
		log:       log.With(logger.String("component", "notifier")),
		now:       time.Now,
	}
}

// TransportName reports the configured transport.
func (n *Notifier) TransportName() string {
	if n.transport == nil {
		return TransportNone
	}
	return n.transport.Name()
}

// Notify renders deals and delivers them to recipient. Zero deals render
// nothing and deliver nothing.
func (n *Notifier) Notify(ctx context.Context, recipient string, deals []domain.DealRecord) Outcome {
	if len(deals) == 0 {
		n.log.Info("No deals to send")
		return Outcome{}
	}

	now := n.now()
	html, err := n.renderer.Render(deals, now)
	if err != nil {
		n.log.Error("Failed to render digest", logger.Error(err))
		return Outcome{Err: fmt.Errorf("%w: %w", ErrDeliveryFailed, err)}
	}

	out := Outcome{HTML: html, Subject: Subject(now)}
	log := n.log.With(
		logger.String("transport", n.TransportName()),
		logger.String("recipient", recipient),
		logger.Int("deals", len(deals)),
	)

	if n.transport == nil {
		log.Info("No delivery transport configured, logging digest",
			logger.String("subject", out.Subject),
			logger.Int("html_bytes", len(html)),
		)
		return out
	}

	digest := Digest{Recipient: recipient, Subject: out.Subject, HTML: html, Deals: deals, SentAt: now}
	if sendErr := n.transport.Send(ctx, digest); sendErr != nil {
		log.Error("Digest delivery failed", logger.Error(sendErr))
		out.Err = fmt.Errorf("%w: %w", ErrDeliveryFailed, sendErr)
		return out
	}

	log.Info("Digest delivered")
	out.Delivered = true
	return out
}
