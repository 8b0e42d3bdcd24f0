package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Endpoint names used as keys in the cache TTL table.
const (
	EndpointMarketOverview = "market_overview"
	EndpointStockData      = "stock_data"
	EndpointIndicators     = "indicators"
	EndpointSectorData     = "sector_data"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Sources     SourcesConfig   `toml:"sources"`
	Cache       CacheConfig     `toml:"cache"`
	Market      MarketConfig    `toml:"market"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Metrics     MetricsConfig   `toml:"metrics"`
}

type ServerConfig struct {
	Port            int    `toml:"port" validate:"min=1,max=65535"`
	Host            string `toml:"host"`
	RequestDeadline string `toml:"request_deadline"` // e.g. "15s" - overall deadline for one aggregation request
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Format     string   `toml:"format" validate:"oneof=text json"`
	Output     []string `toml:"output" validate:"dive,oneof=stdout console file"`
	TimeFormat string   `toml:"time_format"`
}

// SourcesConfig configures the upstream quote providers.
// Priority is the fallback order; providers not listed are never called.
type SourcesConfig struct {
	Priority       []string       `toml:"priority" validate:"min=1,dive,oneof=yahoo twelvedata alphavantage eodhd googlefinance bridge"`
	Timeout        string         `toml:"timeout"`         // Per-request timeout, e.g. "10s"
	MaxConcurrency int            `toml:"max_concurrency" validate:"min=1,max=64"` // In-flight upstream calls per aggregation request
	UserAgent      string         `toml:"user_agent"`
	Yahoo          ProviderConfig `toml:"yahoo"`
	TwelveData     ProviderConfig `toml:"twelvedata"`
	AlphaVantage   ProviderConfig `toml:"alphavantage"`
	EODHD          ProviderConfig `toml:"eodhd"`
	GoogleFinance  ProviderConfig `toml:"googlefinance"`
	Bridge         BridgeConfig   `toml:"bridge"`
}

// ProviderConfig holds settings for one HTTP provider.
type ProviderConfig struct {
	Enabled      bool   `toml:"enabled"`
	BaseURL      string `toml:"base_url" validate:"omitempty,url"`
	APIKey       string `toml:"api_key"`
	RateLimit    int    `toml:"rate_limit" validate:"min=0"` // Requests per second, 0 = provider default
	SymbolSuffix string `toml:"symbol_suffix"`                // Provider suffix replacing ".SR" (e.g. ".SAU")
	Exchange     string `toml:"exchange"`                     // Provider exchange code (e.g. "Tadawul", "TADAWUL")
}

// BridgeConfig configures the external analysis script used as a data source.
type BridgeConfig struct {
	Enabled bool     `toml:"enabled"`
	Command string   `toml:"command" validate:"required_if=Enabled true"`
	Args    []string `toml:"args"`
	Timeout string   `toml:"timeout"`
}

type CacheConfig struct {
	Backend string       `toml:"backend" validate:"oneof=file memory badger redis"`
	Dir     string       `toml:"dir"` // Directory for the file backend
	TTL     TTLConfig    `toml:"ttl"`
	Badger  BadgerConfig `toml:"badger"`
	Redis   RedisConfig  `toml:"redis"`
}

// TTLConfig is the per-endpoint time-to-live table.
type TTLConfig struct {
	MarketOverview string `toml:"market_overview"`
	StockData      string `toml:"stock_data"`
	Indicators     string `toml:"indicators"`
	SectorData     string `toml:"sector_data"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db" validate:"min=0"`
	Prefix   string `toml:"prefix"`
}

// MarketConfig describes the exchange calendar and the dashboard defaults.
type MarketConfig struct {
	Timezone    string `toml:"timezone"`
	PreOpenTime string `toml:"pre_open_time"` // "HH:MM" local
	OpenTime    string `toml:"open_time"`
	CloseTime   string `toml:"close_time"`
	CatalogFile string `toml:"catalog_file"` // Optional YAML catalog overriding the embedded one
	HistoryDays int    `toml:"history_days" validate:"min=2"`
	TopMovers   int    `toml:"top_movers" validate:"min=1"`
}

type SchedulerConfig struct {
	Enabled        bool   `toml:"enabled"`
	PurgeSchedule  string `toml:"purge_schedule"`  // Cron spec for removing expired cache entries
	WarmupSchedule string `toml:"warmup_schedule"` // Cron spec for refreshing the market overview while the market is open
}

type WebSocketConfig struct {
	Enabled     bool   `toml:"enabled"`
	MinInterval string `toml:"min_interval"` // Minimum gap between two snapshot broadcasts
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:            8080,
			Host:            "localhost",
			RequestDeadline: "15s",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Sources: SourcesConfig{
			Priority:       []string{"yahoo", "twelvedata", "alphavantage", "eodhd"},
			Timeout:        "10s",
			MaxConcurrency: 8,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			Yahoo: ProviderConfig{
				Enabled:   true,
				BaseURL:   "https://query1.finance.yahoo.com",
				RateLimit: 5,
			},
			TwelveData: ProviderConfig{
				Enabled:   true,
				BaseURL:   "https://api.twelvedata.com",
				RateLimit: 1,
				Exchange:  "Tadawul",
			},
			AlphaVantage: ProviderConfig{
				Enabled:      true,
				BaseURL:      "https://www.alphavantage.co",
				RateLimit:    1,
				SymbolSuffix: ".SAU",
			},
			EODHD: ProviderConfig{
				Enabled:      true,
				BaseURL:      "https://eodhd.com/api",
				RateLimit:    10,
				SymbolSuffix: ".SR",
			},
			GoogleFinance: ProviderConfig{
				Enabled:   false,
				BaseURL:   "https://www.google.com",
				RateLimit: 2,
				Exchange:  "TADAWUL",
			},
			Bridge: BridgeConfig{
				Enabled: false,
				Timeout: "20s",
			},
		},
		Cache: CacheConfig{
			Backend: "file",
			Dir:     "./data/cache",
			TTL: TTLConfig{
				MarketOverview: "30s",
				StockData:      "30s",
				Indicators:     "300s",
				SectorData:     "3600s",
			},
			Badger: BadgerConfig{
				Path: "./data/badger",
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "tadawul:cache:",
			},
		},
		Market: MarketConfig{
			Timezone:    "Asia/Riyadh",
			PreOpenTime: "09:30",
			OpenTime:    "10:00",
			CloseTime:   "15:00",
			HistoryDays: 120,
			TopMovers:   5,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			PurgeSchedule:  "@every 10m",
			WarmupSchedule: "@every 30s",
		},
		WebSocket: WebSocketConfig{
			Enabled:     true,
			MinInterval: "5s",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TADAWUL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("TADAWUL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TADAWUL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if deadline := os.Getenv("TADAWUL_REQUEST_DEADLINE"); deadline != "" {
		config.Server.RequestDeadline = deadline
	}

	// Logging configuration
	if level := os.Getenv("TADAWUL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("TADAWUL_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitString(output, ",")
	}

	// Sources configuration
	if priority := os.Getenv("TADAWUL_SOURCES_PRIORITY"); priority != "" {
		config.Sources.Priority = splitString(priority, ",")
	}
	if timeout := os.Getenv("TADAWUL_SOURCES_TIMEOUT"); timeout != "" {
		config.Sources.Timeout = timeout
	}
	if concurrency := os.Getenv("TADAWUL_SOURCES_MAX_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Sources.MaxConcurrency = c
		}
	}
	if apiKey := os.Getenv("TADAWUL_TWELVEDATA_API_KEY"); apiKey != "" {
		config.Sources.TwelveData.APIKey = apiKey
	}
	if apiKey := os.Getenv("TADAWUL_ALPHAVANTAGE_API_KEY"); apiKey != "" {
		config.Sources.AlphaVantage.APIKey = apiKey
	}
	if apiKey := os.Getenv("TADAWUL_EODHD_API_KEY"); apiKey != "" {
		config.Sources.EODHD.APIKey = apiKey
	}
	if command := os.Getenv("TADAWUL_BRIDGE_COMMAND"); command != "" {
		config.Sources.Bridge.Command = command
		config.Sources.Bridge.Enabled = true
	}

	// Cache configuration
	if backend := os.Getenv("TADAWUL_CACHE_BACKEND"); backend != "" {
		config.Cache.Backend = strings.ToLower(backend)
	}
	if dir := os.Getenv("TADAWUL_CACHE_DIR"); dir != "" {
		config.Cache.Dir = dir
	}
	if badgerPath := os.Getenv("TADAWUL_BADGER_PATH"); badgerPath != "" {
		config.Cache.Badger.Path = badgerPath
	}
	if addr := os.Getenv("TADAWUL_REDIS_ADDR"); addr != "" {
		config.Cache.Redis.Addr = addr
	}
	if password := os.Getenv("TADAWUL_REDIS_PASSWORD"); password != "" {
		config.Cache.Redis.Password = password
	}

	if catalog := os.Getenv("TADAWUL_CATALOG_FILE"); catalog != "" {
		config.Market.CatalogFile = catalog
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the configuration struct tags and the duration strings.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"server.request_deadline":   c.Server.RequestDeadline,
		"sources.timeout":           c.Sources.Timeout,
		"sources.bridge.timeout":    c.Sources.Bridge.Timeout,
		"cache.ttl.market_overview": c.Cache.TTL.MarketOverview,
		"cache.ttl.stock_data":      c.Cache.TTL.StockData,
		"cache.ttl.indicators":      c.Cache.TTL.Indicators,
		"cache.ttl.sector_data":     c.Cache.TTL.SectorData,
		"websocket.min_interval":    c.WebSocket.MinInterval,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid configuration: %s: %w", name, err)
		}
	}

	return nil
}

// TTLTable returns the cache time-to-live for each endpoint.
func (c CacheConfig) TTLTable() map[string]time.Duration {
	return map[string]time.Duration{
		EndpointMarketOverview: ParseDuration(c.TTL.MarketOverview, 30*time.Second),
		EndpointStockData:      ParseDuration(c.TTL.StockData, 30*time.Second),
		EndpointIndicators:     ParseDuration(c.TTL.Indicators, 5*time.Minute),
		EndpointSectorData:     ParseDuration(c.TTL.SectorData, time.Hour),
	}
}

// ParseDuration parses a duration string, returning fallback when empty or invalid.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// splitString splits a string by separator and trims whitespace
func splitString(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
