package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
)

var (
	// ErrMalformedResponse is returned when the completion is not a JSON object.
	ErrMalformedResponse = errors.New("completion is not valid JSON")
	// ErrMissingDeals is returned when the JSON object has no "deals" array.
	ErrMissingDeals = errors.New(`completion has no "deals" array`)

	errMissingField = errors.New("missing required field")
)

const fence = "```"

// StripFences returns the content of the first fenced code block in s, or s
// itself (trimmed) when there is no fence. A language tag after the opening
// fence is dropped.
func StripFences(s string) string {
	s = strings.TrimSpace(s)

	start := strings.Index(s, fence)
	if start < 0 {
		return s
	}

	body := s[start+len(fence):]
	body = strings.TrimLeft(body, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

type envelope struct {
	Deals *[]json.RawMessage `json:"deals"`
}

// candidate mirrors DealRecord with pointers so absent fields can be told
// apart from zero values.
type candidate struct {
	Title      *string  `json:"title"`
	Price      *float64 `json:"price"`
	Condition  *string  `json:"condition"`
	Brand      *string  `json:"brand"`
	URL        *string  `json:"url"`
	Country    *string  `json:"country"`
	DealScore  *float64 `json:"deal_score"`
	DealReason *string  `json:"deal_reason"`
}

func (c candidate) missing() []string {
	var fields []string
	if c.Title == nil {
		fields = append(fields, "title")
	}
	if c.Price == nil {
		fields = append(fields, "price")
	}
	if c.Condition == nil {
		fields = append(fields, "condition")
	}
	if c.URL == nil {
		fields = append(fields, "url")
	}
	if c.Country == nil {
		fields = append(fields, "country")
	}
	if c.DealScore == nil {
		fields = append(fields, "deal_score")
	}
	if c.DealReason == nil {
		fields = append(fields, "deal_reason")
	}
	return fields
}

// record builds the DealRecord. The country is always the label of the
// catalog the deal came from, whatever spelling the model used.
func (c candidate) record(country string) domain.DealRecord {
	rec := domain.DealRecord{
		Title:      strings.TrimSpace(*c.Title),
		Price:      *c.Price,
		Condition:  strings.TrimSpace(*c.Condition),
		URL:        strings.TrimSpace(*c.URL),
		Country:    country,
		DealScore:  *c.DealScore,
		DealReason: strings.TrimSpace(*c.DealReason),
	}
	if c.Brand != nil {
		rec.Brand = strings.TrimSpace(*c.Brand)
	}
	return rec
}

// Rejection explains why one entry was dropped.
type Rejection struct {
	Index  int
	Reason error
}

// ParseDeals decodes a completion into validated deals for country. The
// returned error covers the whole payload; per-entry problems only produce a
// Rejection and never discard the other entries.
func ParseDeals(raw, country string, validate *validator.Validate) ([]domain.DealRecord, []Rejection, error) {
	var env envelope
	if err := json.Unmarshal([]byte(StripFences(raw)), &env); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if env.Deals == nil {
		return nil, nil, ErrMissingDeals
	}

	entries := *env.Deals
	deals := make([]domain.DealRecord, 0, len(entries))
	var rejected []Rejection

	for i, entry := range entries {
		var c candidate
		if err := json.Unmarshal(entry, &c); err != nil {
			rejected = append(rejected, Rejection{Index: i, Reason: err})
			continue
		}
		if missing := c.missing(); len(missing) > 0 {
			rejected = append(rejected, Rejection{Index: i, Reason: fmt.Errorf("%w: %s", errMissingField, strings.Join(missing, ", "))})
			continue
		}

		rec := c.record(country)
		if err := validate.Struct(rec); err != nil {
			rejected = append(rejected, Rejection{Index: i, Reason: err})
			continue
		}
		deals = append(deals, rec)
	}

	return deals, rejected, nil
}

// NewValidator returns the validator used for DealRecord.
func NewValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
