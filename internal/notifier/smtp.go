package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig configures SMTPTransport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport sends the digest through a plain SMTP relay, upgrading with
// STARTTLS when offered. PLAIN auth is used when a username is set.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport builds the transport.
func NewSMTPTransport(cfg SMTPConfig) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = DefaultResendFrom
	}
	return &SMTPTransport{cfg: cfg}
}

// Name implements Transport.
func (t *SMTPTransport) Name() string { return TransportSMTP }

// Send implements Transport.
func (t *SMTPTransport) Send(ctx context.Context, d Digest) error {
	addr := net.JoinHostPort(t.cfg.Host, strconv.Itoa(t.cfg.Port))

	var dialer net.Dialer
	conn, dialErr := dialer.DialContext(ctx, "tcp", addr)
	if dialErr != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, dialErr)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, clientErr := smtp.NewClient(conn, t.cfg.Host)
	if clientErr != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", clientErr)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if tlsErr := client.StartTLS(&tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12}); tlsErr != nil {
			return fmt.Errorf("smtp starttls: %w", tlsErr)
		}
	}

	if t.cfg.Username != "" {
		if authErr := client.Auth(smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)); authErr != nil {
			return fmt.Errorf("smtp auth: %w", authErr)
		}
	}

	if mailErr := client.Mail(envelopeAddress(t.cfg.From)); mailErr != nil {
		return fmt.Errorf("smtp mail from: %w", mailErr)
	}
	if rcptErr := client.Rcpt(d.Recipient); rcptErr != nil {
		return fmt.Errorf("smtp rcpt to: %w", rcptErr)
	}

	w, dataErr := client.Data()
	if dataErr != nil {
		return fmt.Errorf("smtp data: %w", dataErr)
	}
	if _, writeErr := w.Write(buildMessage(t.cfg.From, d)); writeErr != nil {
		return fmt.Errorf("smtp write: %w", writeErr)
	}
	if closeErr := w.Close(); closeErr != nil {
		return fmt.Errorf("smtp data close: %w", closeErr)
	}

	return client.Quit()
}

// envelopeAddress extracts the bare address from "Name <addr>".
func envelopeAddress(from string) string {
	if start := strings.LastIndexByte(from, '<'); start >= 0 {
		if end := strings.IndexByte(from[start:], '>'); end > 0 {
			return from[start+1 : start+end]
		}
	}
	return strings.TrimSpace(from)
}

func buildMessage(from string, d Digest) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + d.Recipient + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", d.Subject) + "\r\n")
	b.WriteString("Date: " + d.SentAt.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(d.HTML, "\n", "\r\n"))
	return []byte(b.String())
}
