package fetcher_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infrahttp "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/http"
	infralogger "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/fetcher"
)

func newFirecrawl(t *testing.T, handler http.HandlerFunc) *fetcher.FirecrawlFetcher {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return fetcher.NewFirecrawlFetcher(fetcher.FirecrawlConfig{
		BaseURL: server.URL + "/",
		APIKey:  "fc-test",
		Timeout: 5 * time.Second,
		WaitFor: 5 * time.Second,
	}, infrahttp.NewClient(nil), infralogger.NewNop())
}

func TestFirecrawlFetcher_ReturnsMarkdown(t *testing.T) {
	t.Parallel()

	f := newFirecrawl(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://www.vinted.it/catalog", body["url"])
		assert.Equal(t, []any{"markdown"}, body["formats"])
		assert.InDelta(t, 5000, body["waitFor"], 0.1)

		_, _ = w.Write([]byte(`{"success":true,"data":{"markdown":"  # Catalogo\n- Borsa 15€  "}}`))
	})

	res := f.Fetch(t.Context(), "https://www.vinted.it/catalog", "Italy")

	require.NoError(t, res.Err)
	assert.Equal(t, "Italy", res.Country)
	assert.Equal(t, "# Catalogo\n- Borsa 15€", res.Text)
}

func TestFirecrawlFetcher_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "http error", status: http.StatusPaymentRequired, body: `{"error":"Insufficient credits"}`},
		{name: "unsuccessful", status: http.StatusOK, body: `{"success":false,"error":"blocked"}`},
		{name: "garbage", status: http.StatusOK, body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFirecrawl(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res := f.Fetch(t.Context(), "https://www.vinted.de/catalog", "Germany")

			require.Error(t, res.Err)
			assert.Empty(t, res.Text)
			assert.Equal(t, "Germany", res.Country)
		})
	}
}

func TestFirecrawlFetcher_EmptyMarkdownIsNotAnError(t *testing.T) {
	t.Parallel()

	f := newFirecrawl(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"markdown":"   "}}`))
	})

	res := f.Fetch(t.Context(), "https://www.vinted.fr/catalog", "France")

	require.NoError(t, res.Err)
	assert.Empty(t, res.Text)
	assert.Equal(t, "France", res.Country)
}

func TestFirecrawlFetcher_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	f := fetcher.NewFirecrawlFetcher(fetcher.FirecrawlConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond},
		infrahttp.NewClient(nil), infralogger.NewNop())

	res := f.Fetch(t.Context(), "https://www.vinted.fr/catalog", "France")

	require.Error(t, res.Err)
	assert.Less(t, res.Duration, 2*time.Second)
}

func TestCollectorFetcher_ConvertsPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fetcher.DefaultUserAgent, r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(catalogHTML))
	}))
	defer server.Close()

	f := fetcher.NewCollectorFetcher(fetcher.CollectorConfig{Timeout: 5 * time.Second}, infralogger.NewNop())

	res := f.Fetch(t.Context(), server.URL+"/catalog", "Italy")

	require.NoError(t, res.Err)
	assert.Contains(t, res.Text, "[Borsa Gucci vintage]("+server.URL+"/items/101-borsa-gucci)")
}

func TestCollectorFetcher_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	f := fetcher.NewCollectorFetcher(fetcher.CollectorConfig{Timeout: 5 * time.Second}, infralogger.NewNop())

	res := f.Fetch(t.Context(), server.URL, "France")

	require.Error(t, res.Err)
	assert.True(t, strings.Contains(res.Err.Error(), "status 403"), res.Err.Error())
	assert.Empty(t, res.Text)
}
