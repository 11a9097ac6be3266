package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/dailyletter/internal/rss"
)

const sampleYAML = `
rss_sources:
  - name: Hacker News
    url: https://hnrss.org/frontpage
  - name: 36氪
    url: https://36kr.com/feed
schedule:
  cron: "0 0 * * *"
content:
  hours_back: 12
  max_entries: 15
  summary:
    max_length: 40
    model: moonshot-v1-32k
advanced:
  api_delay: 1.5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("KIMI_API_KEY", "sk-test")
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "Hacker News", cfg.Sources[0].Name)
	assert.Equal(t, "https://36kr.com/feed", cfg.Sources[1].URL)
	assert.Equal(t, 12, cfg.HoursBack)
	assert.Equal(t, 15, cfg.MaxEntries)
	assert.Equal(t, 40, cfg.MaxSummaryLength)
	assert.Equal(t, "moonshot-v1-32k", cfg.SummaryModel)
	assert.Equal(t, 1500*time.Millisecond, cfg.APIDelay)
	assert.Equal(t, ProviderMoonshot, cfg.SummaryProvider)
	assert.Equal(t, "sk-test", cfg.APIKey())
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("KIMI_API_KEY", "sk-test")
	t.Setenv("HOURS_BACK", "6")
	t.Setenv("MAX_ENTRIES", "3")
	t.Setenv("API_DELAY_SECONDS", "0")
	t.Setenv("WORKERS", "4")
	t.Setenv("OUTPUT_PATH", "/tmp/out.html")
	t.Setenv("DEBUG", "true")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.HoursBack)
	assert.Equal(t, 3, cfg.MaxEntries)
	assert.Equal(t, time.Duration(0), cfg.APIDelay)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "/tmp/out.html", cfg.OutputPath)
	assert.True(t, cfg.Debug)
}

func TestMissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv("KIMI_API_KEY", "")
	_, err := Load(writeConfig(t, sampleYAML))
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	t.Setenv("SUMMARY_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")
	_, err = Load(writeConfig(t, sampleYAML))
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestProviderNoneNeedsNoKey(t *testing.T) {
	t.Setenv("SUMMARY_PROVIDER", "NONE")
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, ProviderNone, cfg.SummaryProvider)
	assert.Empty(t, cfg.APIKey())
}

func TestGeminiDefaultModel(t *testing.T) {
	t.Setenv("SUMMARY_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg, err := Load(writeConfig(t, `
rss_sources:
  - name: A
    url: https://a.example/feed
`))
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", cfg.SummaryModel)
	assert.Equal(t, "g-key", cfg.APIKey())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := Default()
		c.SummaryProvider = ProviderNone
		c.Sources = sampleSources()
		return c
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"no sources":       func(c *Config) { c.Sources = nil },
		"unnamed source":   func(c *Config) { c.Sources[0].Name = "" },
		"zero hours":       func(c *Config) { c.HoursBack = 0 },
		"negative entries": func(c *Config) { c.MaxEntries = -1 },
		"zero length":      func(c *Config) { c.MaxSummaryLength = 0 },
		"zero workers":     func(c *Config) { c.Workers = 0 },
		"unknown provider": func(c *Config) { c.SummaryProvider = "claude" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "rss_sources: [unterminated"))
	assert.Error(t, err)
}

func sampleSources() []rss.Source {
	return []rss.Source{{Name: "A", URL: "https://a.example/feed"}}
}

func TestReaderPrefixCanBeCleared(t *testing.T) {
	t.Setenv("SUMMARY_PROVIDER", "none")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "https://r.jina.ai/", cfg.ReaderPrefix)

	t.Setenv("READER_PREFIX", "")
	cfg, err = Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Empty(t, cfg.ReaderPrefix)
}

func TestReaderPrefixFromFile(t *testing.T) {
	t.Setenv("SUMMARY_PROVIDER", "none")

	cfg, err := Load(writeConfig(t, sampleYAML+"  reader_prefix: \"\"\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.ReaderPrefix)

	t.Setenv("READER_PREFIX", "https://reader.example/")
	cfg, err = Load(writeConfig(t, sampleYAML+"  reader_prefix: \"\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://reader.example/", cfg.ReaderPrefix)
}
