package config

import "strings"

// Config is the top-level application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Symbols   SymbolsConfig   `mapstructure:"symbols"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
	HTTPAddr string `mapstructure:"http_addr"`
}

// ProviderConfig selects and tunes the upstream data source.
type ProviderConfig struct {
	Name              string `mapstructure:"name"`
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	Adjusted          bool   `mapstructure:"adjusted"`
	CanarySymbol      string `mapstructure:"canary_symbol"`
}

// IngestionConfig tunes the engine's range selection and delisting
// behavior.
type IngestionConfig struct {
	Granularity        string `mapstructure:"granularity"`
	LookbackDays       int    `mapstructure:"lookback_days"`
	Incremental        bool   `mapstructure:"incremental"`
	DelistingDetection bool   `mapstructure:"delisting_detection"`
	MaxGapDays         int    `mapstructure:"max_gap_days"`
	MaxBackfillDays    int    `mapstructure:"max_backfill_days"`
	MaxSymbols         int    `mapstructure:"max_symbols"`
}

type DatabaseConfig struct {
	Path       string `mapstructure:"path"`
	RunLogPath string `mapstructure:"run_log_path"`
}

type SymbolsConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// ScheduleConfig controls serve mode's recurring batch runs.
type ScheduleConfig struct {
	Interval       string `mapstructure:"interval"`
	OffsetSeconds  int    `mapstructure:"offset_seconds"`
	RunImmediately bool   `mapstructure:"run_immediately"`
}

// keySet tracks which paths the config files set explicitly, so defaults
// never clobber a deliberate zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault is one field's defaulting rule.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
