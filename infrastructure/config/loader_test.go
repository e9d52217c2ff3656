package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infraconfig "github.com/jonesrussell/north-cloud/deal-finder/infrastructure/config"
)

type sample struct {
	Server struct {
		Port    int           `env:"SAMPLE_PORT"    yaml:"port"`
		Timeout time.Duration `env:"SAMPLE_TIMEOUT" yaml:"timeout"`
	} `yaml:"server"`
	Countries []string `env:"SAMPLE_COUNTRIES" yaml:"countries"`
	Debug     bool     `env:"SAMPLE_DEBUG"     yaml:"debug"`
	Score     float64  `env:"SAMPLE_SCORE"     yaml:"score"`
	Name      string   `yaml:"name"`
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ReadsYAML(t *testing.T) {
	path := writeFile(t, "name: finder\nserver:\n  port: 9000\n  timeout: 5s\ncountries: [Italy, France]\n")

	cfg, err := infraconfig.Load[sample](path)
	require.NoError(t, err)

	assert.Equal(t, "finder", cfg.Name)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.Timeout)
	assert.Equal(t, []string{"Italy", "France"}, cfg.Countries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SAMPLE_PORT", "9100")
	t.Setenv("SAMPLE_TIMEOUT", "90s")
	t.Setenv("SAMPLE_COUNTRIES", "Germany, Italy")
	t.Setenv("SAMPLE_DEBUG", "yes")
	t.Setenv("SAMPLE_SCORE", "72.5")

	path := writeFile(t, "server:\n  port: 9000\n")

	cfg, err := infraconfig.Load[sample](path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Server.Timeout)
	assert.Equal(t, []string{"Germany", "Italy"}, cfg.Countries)
	assert.True(t, cfg.Debug)
	assert.InDelta(t, 72.5, cfg.Score, 0.0001)
}

func TestLoad_MissingFileUsesZeroValue(t *testing.T) {
	cfg, err := infraconfig.Load[sample](filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "server: [unterminated\n")

	_, err := infraconfig.Load[sample](path)
	require.Error(t, err)
}

func TestLoadWithDefaults_EnvBeatsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_PORT", "7000")

	cfg, err := infraconfig.LoadWithDefaults[sample](writeFile(t, "{}\n"), func(s *sample) {
		if s.Server.Port == 0 {
			s.Server.Port = 8080
		}
		s.Name = "default"
	})
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "default", cfg.Name)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yml", infraconfig.GetConfigPath("config.yml"))

	t.Setenv("CONFIG_PATH", "/etc/deal-finder.yml")
	assert.Equal(t, "/etc/deal-finder.yml", infraconfig.GetConfigPath("config.yml"))
}

func TestValidators(t *testing.T) {
	t.Parallel()

	require.NoError(t, infraconfig.ValidatePort("server.port", 8080))
	require.EqualError(t, infraconfig.ValidatePort("server.port", 0), "server.port: must be between 1 and 65535")
	require.EqualError(t, infraconfig.ValidateRequired("a.b", "  "), "a.b: is required")
	require.NoError(t, infraconfig.ValidateOneOf("t", "smtp", "none", "smtp"))
	require.EqualError(t, infraconfig.ValidateOneOf("t", "fax", "none", "smtp"), "t: must be one of: none, smtp")
	require.NoError(t, infraconfig.ValidateURL("u", "https://api.resend.com/emails"))
	require.Error(t, infraconfig.ValidateURL("u", "/relative"))
	require.Error(t, infraconfig.ValidateLogLevel("loud"))
}
