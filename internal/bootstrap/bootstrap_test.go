package bootstrap_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infralogger "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/logger"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/config"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/domain"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/notifier"
	"github.com/jonesrussell/north-cloud/deal-finder/internal/pipeline"
)

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load(t.TempDir() + "/missing.yml")
	require.NoError(t, err)
	return cfg
}

func TestBuild_DefaultsAreMisconfigured(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("CODEWORDS_RUNTIME_URI", "")
	t.Setenv("NOTIFIER_TRANSPORT", "")
	t.Setenv("RESEND_API_KEY", "")

	cfg := loadDefaults(t)
	c, err := bootstrap.Build(t.Context(), cfg, infralogger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.False(t, c.Orchestrator.Configured())
	assert.Equal(t, notifier.TransportNone, c.Orchestrator.TransportName())
	assert.Len(t, c.Orchestrator.Sites(), 3)

	res, err := c.Orchestrator.Run(t.Context(), pipeline.Request{Recipient: "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusMisconfigured, res.Status)
}

func TestBuild_OpenAIKeyConfiguresAnalyzer(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	c, err := bootstrap.Build(t.Context(), loadDefaults(t), infralogger.NewNop())
	require.NoError(t, err)

	assert.True(t, c.Analyzer.Configured())
}

func TestBuild_AnthropicNeedsKey(t *testing.T) {
	t.Setenv("ANALYZER_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-ignored")

	c, err := bootstrap.Build(t.Context(), loadDefaults(t), infralogger.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Analyzer.Configured())

	t.Setenv("ANTHROPIC_API_KEY", "ak-test")
	c, err = bootstrap.Build(t.Context(), loadDefaults(t), infralogger.NewNop())
	require.NoError(t, err)
	assert.True(t, c.Analyzer.Configured())
}

func TestBuild_RedisTransport(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("NOTIFIER_TRANSPORT", "redis")
	t.Setenv("REDIS_ADDRESS", mr.Addr())

	c, err := bootstrap.Build(t.Context(), loadDefaults(t), infralogger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, notifier.TransportRedis, c.Notifier.TransportName())
}

func TestBuild_RedisTransportUnreachable(t *testing.T) {
	t.Setenv("NOTIFIER_TRANSPORT", "redis")
	t.Setenv("REDIS_ADDRESS", "127.0.0.1:1")

	_, err := bootstrap.Build(t.Context(), loadDefaults(t), infralogger.NewNop())
	require.Error(t, err)
}

func TestBuild_FetcherProviders(t *testing.T) {
	for _, provider := range []string{"http", "browser", "firecrawl"} {
		t.Run(provider, func(t *testing.T) {
			t.Setenv("FETCHER_PROVIDER", provider)
			t.Setenv("FIRECRAWL_API_KEY", "fc-test")

			_, err := bootstrap.Build(t.Context(), loadDefaults(t), infralogger.NewNop())
			require.NoError(t, err)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		t.Setenv("FETCHER_PROVIDER", "carrier-pigeon")

		_, err := bootstrap.Build(t.Context(), loadDefaults(t), infralogger.NewNop())
		require.Error(t, err)
	})
}

func TestRunTimeout(t *testing.T) {
	cfg := &config.Config{}
	cfg.Fetcher.Timeout = time.Minute
	cfg.Analyzer.Timeout = 2 * time.Minute
	cfg.Analyzer.MaxAttempts = 2

	assert.Equal(t, 6*time.Minute, bootstrap.RunTimeout(cfg))
}
