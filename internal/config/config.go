// Package config loads run settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/dailyletter/internal/rss"
	"github.com/deusflow/dailyletter/internal/scraper"
	"github.com/deusflow/dailyletter/internal/summarize"
)

// Summary providers.
const (
	ProviderMoonshot = "moonshot"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderNone     = "none"
)

const DefaultMoonshotModel = "moonshot-v1-8k"

// ErrMissingAPIKey is fatal: the chosen provider has no credential.
var ErrMissingAPIKey = errors.New("summarization API key is not set")

type Config struct {
	// Sources
	Sources        []rss.Source
	ItemsPerSource int
	FeedTimeout    time.Duration

	// Digest shape
	HoursBack        int
	MaxEntries       int
	MaxSummaryLength int
	Workers          int

	// Summarization
	SummaryProvider    string // moonshot | openai | gemini | none
	SummaryModel       string
	SummaryBaseURL     string
	SummaryTimeout     time.Duration
	KimiAPIKey         string
	GeminiAPIKey       string
	APIDelay           time.Duration
	MaxSummaryRequests int // 0 = unlimited

	// Article reader
	ReaderPrefix  string
	ReaderTimeout time.Duration

	// Output & cache
	OutputPath       string
	DatabaseURL      string
	SummaryCacheFile string
	CacheTTLHours    int

	Debug bool
}

// fileConfig mirrors config.yml.
type fileConfig struct {
	RSSSources []rss.Source `yaml:"rss_sources"`
	Content    struct {
		HoursBack  *int `yaml:"hours_back"`
		MaxEntries *int `yaml:"max_entries"`
		Summary    struct {
			MaxLength *int   `yaml:"max_length"`
			Model     string `yaml:"model"`
		} `yaml:"summary"`
	} `yaml:"content"`
	Advanced struct {
		APIDelay     *float64 `yaml:"api_delay"`
		ReaderPrefix *string  `yaml:"reader_prefix"`
	} `yaml:"advanced"`
}

func Default() *Config {
	return &Config{
		ItemsPerSource:   rss.DefaultItemsPerSource,
		FeedTimeout:      20 * time.Second,
		HoursBack:        24,
		MaxEntries:       20,
		MaxSummaryLength: 60,
		Workers:          1,
		SummaryProvider:  ProviderMoonshot,
		SummaryModel:     DefaultMoonshotModel,
		SummaryBaseURL:   summarize.MoonshotBaseURL,
		SummaryTimeout:   summarize.DefaultTimeout,
		APIDelay:         time.Second,
		ReaderPrefix:     scraper.DefaultReaderPrefix,
		ReaderTimeout:    scraper.DefaultTimeout,
		OutputPath:       "digest.html",
		CacheTTLHours:    168,
	}
}

// Load builds a config from defaults, then path (skipped when empty), then
// the environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.loadEnv()
	if cfg.SummaryProvider == ProviderGemini && cfg.SummaryModel == DefaultMoonshotModel {
		cfg.SummaryModel = summarize.DefaultGeminiModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if len(fc.RSSSources) > 0 {
		c.Sources = fc.RSSSources
	}
	if v := fc.Content.HoursBack; v != nil {
		c.HoursBack = *v
	}
	if v := fc.Content.MaxEntries; v != nil {
		c.MaxEntries = *v
	}
	if v := fc.Content.Summary.MaxLength; v != nil {
		c.MaxSummaryLength = *v
	}
	if fc.Content.Summary.Model != "" {
		c.SummaryModel = fc.Content.Summary.Model
	}
	if v := fc.Advanced.APIDelay; v != nil {
		c.APIDelay = time.Duration(*v * float64(time.Second))
	}
	if v := fc.Advanced.ReaderPrefix; v != nil {
		c.ReaderPrefix = *v
	}
	return nil
}

func (c *Config) loadEnv() {
	c.KimiAPIKey = getEnvOrDefault("KIMI_API_KEY", c.KimiAPIKey)
	c.GeminiAPIKey = getEnvOrDefault("GEMINI_API_KEY", c.GeminiAPIKey)
	c.SummaryProvider = strings.ToLower(getEnvOrDefault("SUMMARY_PROVIDER", c.SummaryProvider))
	c.SummaryModel = getEnvOrDefault("SUMMARY_MODEL", c.SummaryModel)
	c.SummaryBaseURL = getEnvOrDefault("SUMMARY_BASE_URL", c.SummaryBaseURL)
	c.OutputPath = getEnvOrDefault("OUTPUT_PATH", c.OutputPath)
	c.DatabaseURL = getEnvOrDefault("DATABASE_URL", c.DatabaseURL)
	c.SummaryCacheFile = getEnvOrDefault("SUMMARY_CACHE_FILE", c.SummaryCacheFile)

	c.HoursBack = getEnvIntOrDefault("HOURS_BACK", c.HoursBack)
	c.MaxEntries = getEnvIntOrDefault("MAX_ENTRIES", c.MaxEntries)
	c.MaxSummaryLength = getEnvIntOrDefault("MAX_SUMMARY_LENGTH", c.MaxSummaryLength)
	c.MaxSummaryRequests = getEnvIntOrDefault("MAX_SUMMARY_REQUESTS", c.MaxSummaryRequests)
	c.Workers = getEnvIntOrDefault("WORKERS", c.Workers)
	c.CacheTTLHours = getEnvIntOrDefault("CACHE_TTL_HOURS", c.CacheTTLHours)

	// An empty READER_PREFIX is meaningful: fetch article pages directly.
	if v, ok := os.LookupEnv("READER_PREFIX"); ok {
		c.ReaderPrefix = v
	}

	if v := os.Getenv("API_DELAY_SECONDS"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			c.APIDelay = time.Duration(secs * float64(time.Second))
		}
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		c.Debug = true
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// APIKey returns the credential for the configured provider.
func (c *Config) APIKey() string {
	switch c.SummaryProvider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderMoonshot, ProviderOpenAI:
		return c.KimiAPIKey
	}
	return ""
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one rss source is required")
	}
	for i, s := range c.Sources {
		if s.Name == "" || s.URL == "" {
			return fmt.Errorf("rss source %d needs both name and url", i)
		}
	}
	if c.HoursBack <= 0 {
		return fmt.Errorf("HOURS_BACK must be positive, got %d", c.HoursBack)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("MAX_ENTRIES must not be negative, got %d", c.MaxEntries)
	}
	if c.MaxSummaryLength <= 0 {
		return fmt.Errorf("MAX_SUMMARY_LENGTH must be positive, got %d", c.MaxSummaryLength)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}

	switch c.SummaryProvider {
	case ProviderNone:
	case ProviderMoonshot, ProviderOpenAI:
		if c.KimiAPIKey == "" {
			return fmt.Errorf("%w: KIMI_API_KEY is required for provider %q", ErrMissingAPIKey, c.SummaryProvider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for provider %q", ErrMissingAPIKey, c.SummaryProvider)
		}
	default:
		return fmt.Errorf("SUMMARY_PROVIDER must be one of moonshot, openai, gemini, none; got %q", c.SummaryProvider)
	}
	return nil
}
