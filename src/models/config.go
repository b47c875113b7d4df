package models

// MConfig Structure
type MConfig struct {
	Name         string              `yaml:"name"`
	Host         string              `yaml:"host"`
	Port         int                 `yaml:"port"`
	LogLevel     string              `yaml:"log_level"`
	GrpcHost     string              `yaml:"grpc_host"`
	GrpcPort     int                 `yaml:"grpc_port"`
	Storage      MStorageConfig      `yaml:"storage"`
	Network      MNetworkConfig      `yaml:"network"`
	Browser      MBrowserConfig      `yaml:"browser"`
	Scraper      MScraperConfig      `yaml:"scraper"`
	Pipeline     MPipelineConfig     `yaml:"pipeline"`
	Orchestrator MOrchestratorConfig `yaml:"orchestrator"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Proxies           []string `yaml:"proxies"`
	RequestTimeout    int      `yaml:"timeout"`
	MaxRetries        int      `yaml:"retries"`
	UserAgent         string   `yaml:"user_agent"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
}

type MBrowserConfig struct {
	ExecPath     string `yaml:"exec_path"`
	Headless     bool   `yaml:"headless"`
	NoSandbox    bool   `yaml:"no_sandbox"`
	WindowWidth  int    `yaml:"window_width"`
	WindowHeight int    `yaml:"window_height"`
	MaxSessions  int    `yaml:"max_sessions"` // 0 = unbounded, callers' worker counts limit growth
}

type MScraperConfig struct {
	BaseURL            string `yaml:"base_url"`
	SymbolHistoryPath  string `yaml:"symbol_history_path"`
	IssuerPath         string `yaml:"issuer_path"`
	NoDataSelector     string `yaml:"no_data_selector"`
	ChunkDays          int    `yaml:"chunk_days"`
	ChunkWorkers       int    `yaml:"chunk_workers"`
	WaitTimeoutSeconds int    `yaml:"wait_timeout_seconds"`
	ExcludedPrefix     string `yaml:"excluded_prefix"`
	PlaceholderOnEmpty *bool  `yaml:"placeholder_on_empty"`
}

type MPipelineConfig struct {
	FetchWorkers    int    `yaml:"fetch_workers"`
	BatchSize       int    `yaml:"batch_size"`
	SkipZeroVolume  *bool  `yaml:"skip_zero_volume"`
	DefaultFromDate string `yaml:"default_from_date"` // YYYY-MM-DD, used when an issuer was never updated
	RefreshAt       string `yaml:"refresh_at"`        // HH:MM exchange time for the daily stale refresh, empty = off
}

type MOrchestratorConfig struct {
	Workers     int    `yaml:"workers"`
	FromYear    int    `yaml:"from_year"`
	ToYear      int    `yaml:"to_year"`
	ArtifactDir string `yaml:"artifact_dir"`
	ImportBatch int    `yaml:"import_batch"`
}
