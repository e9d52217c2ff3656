package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
)

// SubjectPrefix starts every digest subject line.
const SubjectPrefix = "🎯 Top Vinted Deals"

const digestTemplate = `<html>
<head>
<style>
    body { font-family: Arial, sans-serif; background: #f5f5f5; padding: 20px; }
    .container { max-width: 800px; margin: 0 auto; background: white; padding: 30px; border-radius: 10px; }
    h1 { color: #09b1ba; text-align: center; }
    .deal { background: #f9f9f9; padding: 15px; margin: 15px 0; border-left: 4px solid #09b1ba; border-radius: 5px; }
    .deal-title { font-size: 18px; font-weight: bold; color: #333; }
    .price { font-size: 24px; color: #09b1ba; font-weight: bold; }
    .score { background: #09b1ba; color: white; padding: 5px 10px; border-radius: 15px; font-size: 12px; }
    .reason { color: #444; margin-top: 10px; font-style: italic; }
    a { color: #09b1ba; text-decoration: none; }
</style>
</head>
<body>
<div class="container">
    <h1>🎯 Top {{len .Deals}} Vinted Deals ({{.Codes}}) - {{.Date}}</h1>
{{- range .Deals}}
    <div class="deal">
        <div class="deal-title">{{.Position}}. {{.Title}}</div>
        <div style="margin: 10px 0;">
            <span class="price">€{{printf "%.2f" .Price}}</span>
            <span class="score">Score: {{printf "%.0f" .DealScore}}/100</span>
        </div>
        <div style="color: #666; font-size: 14px;">Condizioni: {{.Condition}}{{if .Brand}} • {{.Brand}}{{end}} • 🌍 {{.Country}}</div>
        <div class="reason">💡 {{.DealReason}}</div>
        <div style="margin-top: 10px;"><a href="{{.URL}}" target="_blank">Vedi su Vinted →</a></div>
    </div>
{{- end}}
</div></body></html>
`

var digestTmpl = template.Must(template.New("digest").Parse(digestTemplate))

type digestDeal struct {
	domain.DealRecord
	Position int
}

// Renderer turns ranked deals into the HTML digest.
type Renderer struct {
	codes string
}

// NewRenderer builds a renderer whose heading lists the given country codes.
func NewRenderer(codes []string) *Renderer {
	if len(codes) == 0 {
		codes = []string{"IT", "FR", "DE"}
	}
	return &Renderer{codes: strings.Join(codes, "/")}
}

// Render produces the digest HTML, one deal block per record in input order.
func (r *Renderer) Render(deals []domain.DealRecord, now time.Time) (string, error) {
	view := struct {
		Codes string
		Date  string
		Deals []digestDeal
	}{
		Codes: r.codes,
		Date:  now.Format("02 January 2006"),
		Deals: make([]digestDeal, len(deals)),
	}
	for i, d := range deals {
		view.Deals[i] = digestDeal{DealRecord: d, Position: i + 1}
	}

	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

// Subject formats the subject line for a digest sent at now.
func Subject(now time.Time) string {
	return SubjectPrefix + " - " + now.Format("02/01/2006")
}
