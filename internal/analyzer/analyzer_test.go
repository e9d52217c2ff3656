package analyzer_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/analyzer"
)

const twoDeals = `{"deals": [
  {"title": "Nike Air Max 90", "price": 12.5, "condition": "Very good", "brand": "Nike",
   "url": "https://www.vinted.it/items/1", "country": "italy", "deal_score": 92, "deal_reason": "Prezzo molto basso."},
  {"title": "Zara coat", "price": 9, "condition": "New with tags", "brand": null,
   "url": "https://www.vinted.it/items/2", "country": "Italy", "deal_score": 75, "deal_reason": "Nuovo con cartellino."}
]}`

type countingCompleter struct {
	calls    atomic.Int32
	response string
	err      error
	lastUser atomic.Value
}

func (c *countingCompleter) Complete(_ context.Context, _, user string) (string, error) {
	c.calls.Add(1)
	c.lastUser.Store(user)
	return c.response, c.err
}

func longText() string {
	return strings.Repeat("Nike Air Max 90 - 12,50 € ", 20)
}

func newAnalyzer(completer analyzer.Completer) *analyzer.Analyzer {
	return analyzer.New(analyzer.Config{}, completer, infralogger.NewNop())
}

func TestExtract_ShortTextSkipsCompletion(t *testing.T) {
	t.Parallel()

	fake := &countingCompleter{response: twoDeals}
	res := newAnalyzer(fake).Extract(t.Context(), strings.Repeat("x", 99), "Italy")

	assert.True(t, res.Skipped)
	assert.Empty(t, res.Deals)
	require.NoError(t, res.Err)
	assert.Equal(t, int32(0), fake.calls.Load())
}

func TestExtract_ParsesValidDeals(t *testing.T) {
	t.Parallel()

	fake := &countingCompleter{response: twoDeals}
	res := newAnalyzer(fake).Extract(t.Context(), longText(), "Italy")

	require.NoError(t, res.Err)
	require.Len(t, res.Deals, 2)
	assert.Equal(t, int32(1), fake.calls.Load())
	assert.Equal(t, "Nike Air Max 90", res.Deals[0].Title)
	assert.Equal(t, "Italy", res.Deals[0].Country, "country is normalized to the catalog label")
	assert.Empty(t, res.Deals[1].Brand)
	assert.InDelta(t, 9.0, res.Deals[1].Price, 0.001)
}

func TestExtract_FencedEqualsUnfenced(t *testing.T) {
	t.Parallel()

	plain := newAnalyzer(&countingCompleter{response: twoDeals}).Extract(t.Context(), longText(), "France")
	fenced := newAnalyzer(&countingCompleter{response: "```json\n" + twoDeals + "\n```"}).Extract(t.Context(), longText(), "France")
	bare := newAnalyzer(&countingCompleter{response: "Here you go:\n```\n" + twoDeals + "```"}).Extract(t.Context(), longText(), "France")

	require.NoError(t, plain.Err)
	assert.Equal(t, plain.Deals, fenced.Deals)
	assert.Equal(t, plain.Deals, bare.Deals)
}

func TestExtract_InvalidJSONYieldsEmpty(t *testing.T) {
	t.Parallel()

	res := newAnalyzer(&countingCompleter{response: "not json at all"}).Extract(t.Context(), longText(), "Germany")

	assert.Empty(t, res.Deals)
	require.ErrorIs(t, res.Err, analyzer.ErrMalformedResponse)
}

func TestExtract_MissingDealsKey(t *testing.T) {
	t.Parallel()

	res := newAnalyzer(&countingCompleter{response: `{"items": []}`}).Extract(t.Context(), longText(), "Germany")

	assert.Empty(t, res.Deals)
	require.ErrorIs(t, res.Err, analyzer.ErrMissingDeals)
}

func TestExtract_DropsOnlyInvalidEntries(t *testing.T) {
	t.Parallel()

	response := `{"deals": [
	  {"title": "Adidas Samba", "price": 25, "condition": "Good", "url": "https://www.vinted.fr/items/3",
	   "country": "France", "deal_score": 80, "deal_reason": "Bon prix."},
	  {"title": "Missing score", "price": 5, "condition": "Good", "url": "https://www.vinted.fr/items/4",
	   "country": "France", "deal_reason": "No score."}
	]}`

	res := newAnalyzer(&countingCompleter{response: response}).Extract(t.Context(), longText(), "France")

	require.NoError(t, res.Err)
	require.Len(t, res.Deals, 1)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, "Adidas Samba", res.Deals[0].Title)
}

func TestExtract_RejectsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	response := `{"deals": [
	  {"title": "Too good", "price": 5, "condition": "New", "url": "https://www.vinted.de/items/5",
	   "country": "Germany", "deal_score": 140, "deal_reason": "Zu gut."},
	  {"title": "Negative", "price": -1, "condition": "New", "url": "https://www.vinted.de/items/6",
	   "country": "Germany", "deal_score": 60, "deal_reason": "Negativ."},
	  {"title": "Relative link", "price": 3, "condition": "New", "url": "/items/7",
	   "country": "Germany", "deal_score": 60, "deal_reason": "Relativ."},
	  {"title": "Wrong type", "price": "cheap", "condition": "New", "url": "https://www.vinted.de/items/8",
	   "country": "Germany", "deal_score": 60, "deal_reason": "Text."}
	]}`

	res := newAnalyzer(&countingCompleter{response: response}).Extract(t.Context(), longText(), "Germany")

	require.NoError(t, res.Err)
	assert.Empty(t, res.Deals)
	assert.Equal(t, 4, res.Dropped)
}

func TestExtract_CompletionErrorYieldsEmpty(t *testing.T) {
	t.Parallel()

	boom := errors.New("gateway exploded")
	res := newAnalyzer(&countingCompleter{err: boom}).Extract(t.Context(), longText(), "Italy")

	assert.Empty(t, res.Deals)
	require.ErrorIs(t, res.Err, boom)
}

func TestExtract_NotConfigured(t *testing.T) {
	t.Parallel()

	a := newAnalyzer(nil)
	res := a.Extract(t.Context(), longText(), "Italy")

	assert.False(t, a.Configured())
	assert.Empty(t, res.Deals)
	require.ErrorIs(t, res.Err, analyzer.ErrNotConfigured)
}

func TestExtract_TruncatesLongCatalogs(t *testing.T) {
	t.Parallel()

	fake := &countingCompleter{response: `{"deals": []}`}
	a := analyzer.New(analyzer.Config{MaxContentChars: 500}, fake, infralogger.NewNop())

	res := a.Extract(t.Context(), strings.Repeat("é", 2000), "Italy")

	require.NoError(t, res.Err)
	user, ok := fake.lastUser.Load().(string)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("é", 500), strings.TrimPrefix(user, analyzer.BuildUserPrompt("")))
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", analyzer.Truncate("abc", 10))
	assert.Equal(t, "ab", analyzer.Truncate("abc", 2))
	assert.Equal(t, "€€", analyzer.Truncate("€€€", 2))
	assert.Equal(t, "abc", analyzer.Truncate("abc", 0))
}

func TestStripFences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fence", in: `  {"deals": []} `, want: `{"deals": []}`},
		{name: "json fence", in: "```json\n{\"deals\": []}\n```", want: `{"deals": []}`},
		{name: "bare fence", in: "```\n{\"deals\": []}\n```", want: `{"deals": []}`},
		{name: "unterminated", in: "```json\n{\"deals\": []}", want: `{"deals": []}`},
		{name: "inline", in: "```json{\"deals\": []}```", want: `{"deals": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, analyzer.StripFences(tt.in))
		})
	}
}

func TestBuildSystemPrompt_UsesThresholds(t *testing.T) {
	t.Parallel()

	prompt := analyzer.BuildSystemPrompt(analyzer.PromptConfig{
		Thresholds: analyzer.Thresholds{ExceptionalDesignerMax: 15, ExceptionalAnyMax: 3, GreatBrandMax: 25, GreatAnyMax: 7.5},
		Brands:     []string{"Prada"},
	}, "France")

	assert.Contains(t, prompt, "Vinted France catalog")
	assert.Contains(t, prompt, "designer under €15 or amazing under €3")
	assert.Contains(t, prompt, "good under €7.50")
	assert.Contains(t, prompt, "(Prada)")
	assert.Contains(t, prompt, `"deals"`)
	assert.Contains(t, prompt, "in Italian")
}
