package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, "", cfg.DefaultModel)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 0.7, cfg.DefaultTemperature)
	assert.Equal(t, 64, cfg.DefaultTopK)
	assert.Len(t, cfg.Catalog, len(DefaultCatalog()))
	assert.False(t, cfg.MockMode())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("LLM_TIMEOUT_MS", "1500")
	t.Setenv("DEFAULT_TEMPERATURE", "0.1")
	t.Setenv("CHATGATE_MODE", "mock")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, 1500*time.Millisecond, cfg.LLMTimeout)
	assert.Equal(t, 0.1, cfg.DefaultTemperature)
	assert.True(t, cfg.MockMode())
	assert.True(t, cfg.OpenAI.Enabled())
	assert.False(t, cfg.Anthropic.Enabled())
	assert.False(t, cfg.MetricsEnabled)
}

func TestValidate(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "redis")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "unknown store backend")
	})

	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "postgres")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "DATABASE_URL is required")
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "loud")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "unknown LOG_LEVEL")
	})
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("DEFAULT_MODEL=gpt-4\nHTTP_PORT=8123\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	// godotenv never overrides variables that are already set, so clear them for the test.
	t.Setenv("DEFAULT_MODEL", "")
	t.Setenv("HTTP_PORT", "")
	os.Unsetenv("DEFAULT_MODEL")
	os.Unsetenv("HTTP_PORT")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", cfg.DefaultModel)
	assert.Equal(t, 8123, cfg.HTTPPort)
}

func TestLoadWithoutDotEnv(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	_, err := Load()
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestGenerationDefaults(t *testing.T) {
	cfg := &Config{DefaultTemperature: 0.5, DefaultTopP: 0.9, DefaultTopK: 40, DefaultMaxTokens: 256}
	p := cfg.GenerationDefaults()
	assert.Equal(t, 0.5, *p.Temperature)
	assert.Equal(t, 0.9, *p.TopP)
	assert.Equal(t, 40, *p.TopK)
	assert.Equal(t, 256, *p.MaxTokens)
}
