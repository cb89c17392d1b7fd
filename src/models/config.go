package models

// MConfig Structure
type MConfig struct {
	Name     string `yaml:"name" env:"MDH_NAME"`
	Host     string `yaml:"host" env:"MDH_HOST"`
	Port     int    `yaml:"port" env:"MDH_PORT"`
	LogLevel string `yaml:"log_level" env:"MDH_LOG_LEVEL"`
	GrpcHost string `yaml:"grpc_host" env:"MDH_GRPC_HOST"`
	GrpcPort int    `yaml:"grpc_port" env:"MDH_GRPC_PORT"`

	Router       MRouterConfig       `yaml:"router"`
	Cache        MCacheConfig        `yaml:"cache"`
	Orchestrator MOrchestratorConfig `yaml:"orchestrator"`
	Storage      MStorageConfig      `yaml:"storage"`
	Network      MNetworkConfig      `yaml:"network"`
	Kafka        MKafkaConfig        `yaml:"kafka"`
	Metrics      MMetricsConfig      `yaml:"metrics"`
	Regions      []Region            `yaml:"regions"`

	Providers      []MProviderConfig `yaml:"providers"`
	SymbolMappings []MSymbolMapping  `yaml:"symbol_mappings"`
}

// GetLogLevel lets the logger pick up the configured level.
func (c *MConfig) GetLogLevel() string {
	return c.LogLevel
}

// -----------------------------------------------------------------------------

// MProviderConfig is the immutable per-vendor policy.
type MProviderConfig struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"` // adapter implementation: yahoo, finnhub
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	StreamURL string `yaml:"stream_url"`

	RequestsPerMinute int     `yaml:"requests_per_minute"`
	RequestsPerDay    int     `yaml:"requests_per_day"`
	CostPerRequest    float64 `yaml:"cost_per_request"`
	DailyBudget       float64 `yaml:"daily_budget"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
	RetryCount     int `yaml:"retry_count"`
	RetryDelayMs   int `yaml:"retry_delay_ms"`
	MaxBatchSize   int `yaml:"max_batch_size"`
	Priority       int `yaml:"priority"` // lower is preferred

	SupportsBatch      bool `yaml:"supports_batch"`
	SupportsWebsocket  bool `yaml:"supports_websocket"`
	SupportsHistorical bool `yaml:"supports_historical"`

	MarketTypes []MarketType `yaml:"market_types"`
	DataTypes   []DataType   `yaml:"data_types"`
	SymbolStyle SymbolStyle  `yaml:"symbol_style"`
}

// SupportsMarket reports whether the vendor covers mt. An empty list covers everything.
func (p MProviderConfig) SupportsMarket(mt MarketType) bool {
	if mt == "" || len(p.MarketTypes) == 0 {
		return true
	}
	for _, m := range p.MarketTypes {
		if m == mt {
			return true
		}
	}
	return false
}

func (p MProviderConfig) SupportsData(dt DataType) bool {
	if dt == "" || len(p.DataTypes) == 0 {
		return true
	}
	for _, d := range p.DataTypes {
		if d == dt {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

type MRouterConfig struct {
	Strategy                RoutingStrategy `yaml:"strategy" env:"MDH_ROUTER_STRATEGY"`
	MaxRetries              int             `yaml:"max_retries" env:"MDH_ROUTER_MAX_RETRIES"`
	RetryDelayMs            int             `yaml:"retry_delay_ms"`
	CircuitBreakerThreshold int             `yaml:"circuit_breaker_threshold"`
	HealthCheckIntervalSec  int             `yaml:"health_check_interval_seconds"`
	DefaultRetryAfterSec    int             `yaml:"default_retry_after_seconds"`
	LatencyWindow           int             `yaml:"latency_window"`
}

type MCacheConfig struct {
	Enabled                 bool         `yaml:"enabled" env:"MDH_CACHE_ENABLED"`
	Backend                 string       `yaml:"backend" env:"MDH_CACHE_BACKEND"` // redis or memory
	KeyPrefix               string       `yaml:"key_prefix"`
	QuoteTTLSeconds         int          `yaml:"quote_ttl_seconds"`
	ClosedMarketQuoteTTLSec int          `yaml:"closed_market_quote_ttl_seconds"`
	HistoricalTTLSeconds    int          `yaml:"historical_ttl_seconds"`
	LatestBarTTLSeconds     int          `yaml:"latest_bar_ttl_seconds"`
	MetadataTTLSeconds      int          `yaml:"metadata_ttl_seconds"`
	MaxListSize             int          `yaml:"max_list_size"`
	Redis                   MRedisConfig `yaml:"redis"`
}

type MRedisConfig struct {
	Addr     string `yaml:"addr" env:"MDH_REDIS_ADDR"`
	Password string `yaml:"password" env:"MDH_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"MDH_REDIS_DB"`
	PoolSize int    `yaml:"pool_size"`
}

type MOrchestratorConfig struct {
	MaxParallelRequests int      `yaml:"max_parallel_requests"`
	GapDetection        bool     `yaml:"gap_detection"`
	ArchiveHistorical   bool     `yaml:"archive_historical"`
	ArchiveFallback     bool     `yaml:"archive_fallback"`
	StreamSymbols       []string `yaml:"stream_symbols"`
	FetchTimeoutSec     int      `yaml:"fetch_timeout_sec"`
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DBType             string `yaml:"db_type" env:"MDH_DB_TYPE"`
	DBPath             string `yaml:"db_path" env:"MDH_DB_PATH"`
	DBConnectionString string `yaml:"db_connection_string" env:"MDH_DB_DSN"`
	Schema             string `yaml:"schema"`
	RetentionDays      int    `yaml:"retention_days"`
}

type MNetworkConfig struct {
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
}

type MKafkaConfig struct {
	Enabled bool     `yaml:"enabled" env:"MDH_KAFKA_ENABLED"`
	Brokers []string `yaml:"brokers" env:"MDH_KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"MDH_KAFKA_TOPIC"`
}

type MMetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}
