// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageBolt     = "bolt"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// LLM backends.
const (
	LLMNone      = "none"
	LLMAnthropic = "anthropic"
	LLMOpenAI    = "openai"
	LLMOllama    = "ollama"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	SerpAPI   SerpAPIConfig   `yaml:"serpapi"`
	Upload    UploadConfig    `yaml:"upload"`
	LLM       LLMConfig       `yaml:"llm"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Query     QueryConfig     `yaml:"query"`
	Cache     CacheConfig     `yaml:"cache"`
	Engine    EngineConfig    `yaml:"engine"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Stats     StatsConfig     `yaml:"stats"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig selects and configures the key-value backend shared by the
// cache and curation stores.
type StorageConfig struct {
	Backend  string         `yaml:"backend"` // memory, bolt, postgres, redis
	Bolt     BoltConfig     `yaml:"bolt"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// BoltConfig defines the embedded bbolt file.
type BoltConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig defines PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s pool_max_conns=%d",
		p.Host, p.Port, p.Name, p.User, p.Password, p.SSLMode, p.PoolSize,
	)
}

// RedisConfig defines the Redis connection.
type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
}

// SerpAPIConfig defines search provider settings.
type SerpAPIConfig struct {
	APIKey       string          `yaml:"api_key"`
	BaseURL      string          `yaml:"base_url"`
	TextEngine   string          `yaml:"text_engine"`
	VisualEngine string          `yaml:"visual_engine"`
	Location     string          `yaml:"location"`
	Timeout      time.Duration   `yaml:"timeout"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines search provider rate limiting. A zero DailyLimit
// disables the daily quota.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// UploadConfig defines the object store used to publish images for visual
// search. An empty endpoint disables visual search.
type UploadConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	PublicBaseURL string        `yaml:"public_base_url"`
	Prefix        string        `yaml:"prefix"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Enabled reports whether an upload endpoint is configured.
func (u *UploadConfig) Enabled() bool {
	return u.Endpoint != ""
}

// LLMConfig defines generated-text backend settings.
type LLMConfig struct {
	Backend   string                `yaml:"backend"` // none, anthropic, openai, ollama
	APIKey    string                `yaml:"api_key"`
	BaseURL   string                `yaml:"base_url"`
	Model     string                `yaml:"model"`
	Timeout   time.Duration         `yaml:"timeout"`
	Tools     map[string]ToolConfig `yaml:"tools"`
	Anthropic AnthropicConfig       `yaml:"anthropic"`
}

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	Version string `yaml:"version"`
}

// ToolConfig overrides generation settings for one tool.
type ToolConfig struct {
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

// PricingConfig overrides currency to USD multipliers, keyed by ISO code.
type PricingConfig struct {
	Multipliers map[string]float64 `yaml:"multipliers"`
}

// QueryConfig tunes text query generation. Empty values keep the built-in
// defaults.
type QueryConfig struct {
	Qualifiers        []string `yaml:"qualifiers"`
	FallbackQuery     string   `yaml:"fallback_query"`
	PlaceholderTitles []string `yaml:"placeholder_titles"`
}

// CacheConfig defines cache lifetimes.
type CacheConfig struct {
	GeneratedTextTTL time.Duration `yaml:"generated_text_ttl"`
}

// EngineConfig defines aggregation settings.
type EngineConfig struct {
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// TelemetryConfig defines OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	Insecure     bool    `yaml:"insecure"`
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

// StatsConfig defines the stats reporter schedule.
type StatsConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, expanding ${VAR} references from the
// environment, then applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied. It is not
// validated; the search provider key is still empty.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applySerpAPIDefaults(&cfg.SerpAPI)
	applyUploadDefaults(&cfg.Upload)
	applyLLMDefaults(&cfg.LLM)
	if cfg.Cache.GeneratedTextTTL == 0 {
		cfg.Cache.GeneratedTextTTL = 7 * 24 * time.Hour
	}
	if cfg.Engine.FetchTimeout == 0 {
		cfg.Engine.FetchTimeout = 45 * time.Second
	}
	applyTelemetryDefaults(&cfg.Telemetry)
	if cfg.Stats.Interval == 0 {
		cfg.Stats.Interval = 5 * time.Minute
	}
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 60 * time.Second
	}
}

func applyStorageDefaults(s *StorageConfig) {
	if s.Backend == "" {
		s.Backend = StorageBolt
	}
	if s.Bolt.Path == "" {
		s.Bolt.Path = "data/market-comps.db"
	}
	if s.Postgres.Port == 0 {
		s.Postgres.Port = 5432
	}
	if s.Postgres.SSLMode == "" {
		s.Postgres.SSLMode = "disable"
	}
	if s.Postgres.PoolSize == 0 {
		s.Postgres.PoolSize = 10
	}
	if s.Redis.Namespace == "" {
		s.Redis.Namespace = "market-comps"
	}
}

func applySerpAPIDefaults(s *SerpAPIConfig) {
	if s.BaseURL == "" {
		s.BaseURL = "https://serpapi.com/search.json"
	}
	if s.TextEngine == "" {
		s.TextEngine = "google_shopping"
	}
	if s.VisualEngine == "" {
		s.VisualEngine = "google_lens"
	}
	if s.Timeout == 0 {
		s.Timeout = 20 * time.Second
	}
	if s.RateLimit.PerSecond == 0 {
		s.RateLimit.PerSecond = 2.0
	}
	if s.RateLimit.Burst == 0 {
		s.RateLimit.Burst = 4
	}
}

func applyUploadDefaults(u *UploadConfig) {
	if u.Prefix == "" {
		u.Prefix = "serp-api"
	}
	if u.PublicBaseURL == "" {
		u.PublicBaseURL = u.Endpoint
	}
	if u.Timeout == 0 {
		u.Timeout = 30 * time.Second
	}
}

func applyLLMDefaults(l *LLMConfig) {
	if l.Backend == "" {
		l.Backend = LLMNone
	}
	if l.Timeout == 0 {
		l.Timeout = 30 * time.Second
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.OTLPEndpoint == "" {
		t.OTLPEndpoint = "localhost:4317"
	}
	if t.ServiceName == "" {
		t.ServiceName = "market-comps"
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = 1.0
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

var knownTools = []string{"appraisal", "listing_copy"}

func validate(cfg *Config) error {
	var errs []error

	if cfg.SerpAPI.APIKey == "" {
		errs = append(errs, fmt.Errorf("serpapi.api_key is required"))
	}
	if cfg.SerpAPI.RateLimit.DailyLimit < 0 {
		errs = append(errs, fmt.Errorf("serpapi.rate_limit.daily_limit must not be negative"))
	}

	switch cfg.Storage.Backend {
	case StorageMemory, StorageBolt:
	case StoragePostgres:
		if cfg.Storage.Postgres.Host == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.host is required when backend is postgres"))
		}
		if cfg.Storage.Postgres.Name == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.name is required when backend is postgres"))
		}
		if cfg.Storage.Postgres.User == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.user is required when backend is postgres"))
		}
	case StorageRedis:
		if cfg.Storage.Redis.URL == "" {
			errs = append(errs, fmt.Errorf("storage.redis.url is required when backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"storage.backend must be one of: memory, bolt, postgres, redis (got %q)",
			cfg.Storage.Backend,
		))
	}

	if cfg.Upload.Enabled() {
		if _, err := url.ParseRequestURI(cfg.Upload.Endpoint); err != nil {
			errs = append(errs, fmt.Errorf("upload.endpoint is not a valid URL: %w", err))
		}
	}

	switch cfg.LLM.Backend {
	case LLMNone, LLMOllama:
	case LLMAnthropic, LLMOpenAI:
		if cfg.LLM.APIKey == "" {
			errs = append(errs, fmt.Errorf("llm.api_key is required when backend is %s", cfg.LLM.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf(
			"llm.backend must be one of: none, anthropic, openai, ollama (got %q)",
			cfg.LLM.Backend,
		))
	}
	for name := range cfg.LLM.Tools {
		if !slices.Contains(knownTools, name) {
			errs = append(errs, fmt.Errorf("llm.tools.%s is not a known tool", name))
		}
	}

	for code, m := range cfg.Pricing.Multipliers {
		if m <= 0 {
			errs = append(errs, fmt.Errorf("pricing.multipliers.%s must be positive", code))
		}
	}

	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio must be between 0 and 1"))
	}

	return errors.Join(errs...)
}
