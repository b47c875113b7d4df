package config

import (
	"fmt"
	"os"
	"time"

	"mse-pipeline/src/models"

	"gopkg.in/yaml.v3"
)

// Defaults applied to every tunable left at its zero value.
const (
	DefaultBaseURL           = "https://www.mse.mk"
	DefaultSymbolHistoryPath = "/en/stats/symbolhistory/TEL"
	DefaultIssuerPath        = "/en/issuer/"
	DefaultNoDataSelector    = ".no-results"
	DefaultChunkDays         = 30
	DefaultChunkWorkers      = 4
	DefaultWaitTimeout       = 10
	DefaultExcludedPrefix    = "E"
	DefaultFetchWorkers      = 10
	DefaultBatchSize         = 1000
	DefaultFromDate          = "2014-01-01"
	DefaultOrchestratorPool  = 10
	DefaultFromYear          = 2014
	DefaultArtifactDir       = "stock_data"
	DefaultImportBatch       = 50000
	DefaultRequestTimeout    = 30
	DefaultRequestsPerSecond = 1.0
	DefaultWindowWidth       = 1920
	DefaultWindowHeight      = 1080
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}
	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a validated Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills every unset tunable.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "mse-pipeline"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}

	n := &c.Network
	if n.RequestTimeout == 0 {
		n.RequestTimeout = DefaultRequestTimeout
	}
	if n.RequestsPerSecond == 0 {
		n.RequestsPerSecond = DefaultRequestsPerSecond
	}

	b := &c.Browser
	if b.WindowWidth == 0 {
		b.WindowWidth = DefaultWindowWidth
	}
	if b.WindowHeight == 0 {
		b.WindowHeight = DefaultWindowHeight
	}

	s := &c.Scraper
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	if s.SymbolHistoryPath == "" {
		s.SymbolHistoryPath = DefaultSymbolHistoryPath
	}
	if s.IssuerPath == "" {
		s.IssuerPath = DefaultIssuerPath
	}
	if s.NoDataSelector == "" {
		s.NoDataSelector = DefaultNoDataSelector
	}
	if s.ChunkDays == 0 {
		s.ChunkDays = DefaultChunkDays
	}
	if s.ChunkWorkers == 0 {
		s.ChunkWorkers = DefaultChunkWorkers
	}
	if s.WaitTimeoutSeconds == 0 {
		s.WaitTimeoutSeconds = DefaultWaitTimeout
	}
	if s.ExcludedPrefix == "" {
		s.ExcludedPrefix = DefaultExcludedPrefix
	}
	if s.PlaceholderOnEmpty == nil {
		s.PlaceholderOnEmpty = boolPtr(true)
	}

	p := &c.Pipeline
	if p.FetchWorkers == 0 {
		p.FetchWorkers = DefaultFetchWorkers
	}
	if p.BatchSize == 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.SkipZeroVolume == nil {
		p.SkipZeroVolume = boolPtr(true)
	}
	if p.DefaultFromDate == "" {
		p.DefaultFromDate = DefaultFromDate
	}

	o := &c.Orchestrator
	if o.Workers == 0 {
		o.Workers = DefaultOrchestratorPool
	}
	if o.FromYear == 0 {
		o.FromYear = DefaultFromYear
	}
	if o.ToYear == 0 {
		o.ToYear = time.Now().Year()
	}
	if o.ArtifactDir == "" {
		o.ArtifactDir = DefaultArtifactDir
	}
	if o.ImportBatch == 0 {
		o.ImportBatch = DefaultImportBatch
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Port != 0 && (c.Port <= 1024 || c.Port > 65535) {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Storage.DBType)
	}

	if c.Network.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}

	if c.Browser.MaxSessions < 0 {
		return fmt.Errorf("browser max sessions cannot be negative")
	}

	if c.Scraper.ChunkDays < 1 {
		return fmt.Errorf("chunk days must be at least 1")
	}
	if c.Scraper.ChunkWorkers < 1 {
		return fmt.Errorf("chunk workers must be at least 1")
	}
	if c.Scraper.WaitTimeoutSeconds < 1 {
		return fmt.Errorf("wait timeout must be at least 1 second")
	}

	if c.Pipeline.FetchWorkers < 1 {
		return fmt.Errorf("fetch workers must be at least 1")
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1")
	}
	if _, err := time.Parse("2006-01-02", c.Pipeline.DefaultFromDate); err != nil {
		return fmt.Errorf("invalid default_from_date %q: %w", c.Pipeline.DefaultFromDate, err)
	}
	if c.Pipeline.RefreshAt != "" {
		if _, err := time.Parse("15:04", c.Pipeline.RefreshAt); err != nil {
			return fmt.Errorf("invalid refresh_at %q, want HH:MM: %w", c.Pipeline.RefreshAt, err)
		}
	}

	if c.Orchestrator.Workers < 1 {
		return fmt.Errorf("orchestrator workers must be at least 1")
	}
	if c.Orchestrator.FromYear > c.Orchestrator.ToYear {
		return fmt.Errorf("from_year %d is after to_year %d", c.Orchestrator.FromYear, c.Orchestrator.ToYear)
	}

	return nil
}

// -----------------------------------------------------------------------------

// WaitTimeout returns the bounded page wait as a duration.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Scraper.WaitTimeoutSeconds) * time.Second
}

// DefaultStart returns the parsed default fetch start date.
func (c *Config) DefaultStart() time.Time {
	t, _ := time.Parse("2006-01-02", c.Pipeline.DefaultFromDate)
	return t
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

func boolPtr(b bool) *bool { return &b }
