package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/models"
	"market-data-hub/src/utils"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file.
// ${VAR} references are expanded before parsing, then MDH_* variables override.
func NewConfig(configPath string) (*Config, error) {
	// 0. Optional .env next to the process; a missing file is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, helpers.NewConfigurationError("failed to load .env", err)
	}

	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a validated Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Environment overrides (env tags)
	if err := cleanenv.ReadEnv(&modelConfig); err != nil {
		return nil, helpers.NewConfigurationError("failed to read environment overrides", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "market-data-hub"
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}

	r := &c.Router
	if r.Strategy == "" {
		r.Strategy = models.StrategyPriority
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 3
	}
	if r.RetryDelayMs == 0 {
		r.RetryDelayMs = 500
	}
	if r.CircuitBreakerThreshold == 0 {
		r.CircuitBreakerThreshold = 5
	}
	if r.HealthCheckIntervalSec == 0 {
		r.HealthCheckIntervalSec = 60
	}
	if r.DefaultRetryAfterSec == 0 {
		r.DefaultRetryAfterSec = int(utils.DefaultRetryAfter.Seconds())
	}
	if r.LatencyWindow == 0 {
		r.LatencyWindow = utils.DefaultLatencyWindow
	}

	cc := &c.Cache
	if cc.Backend == "" {
		cc.Backend = "memory"
	}
	if cc.KeyPrefix == "" {
		cc.KeyPrefix = "market"
	}
	if cc.QuoteTTLSeconds == 0 {
		cc.QuoteTTLSeconds = 15
	}
	if cc.ClosedMarketQuoteTTLSec == 0 {
		cc.ClosedMarketQuoteTTLSec = 900
	}
	if cc.HistoricalTTLSeconds == 0 {
		cc.HistoricalTTLSeconds = 3600
	}
	if cc.LatestBarTTLSeconds == 0 {
		cc.LatestBarTTLSeconds = 3600
	}
	if cc.MetadataTTLSeconds == 0 {
		cc.MetadataTTLSeconds = 86400
	}
	if cc.MaxListSize == 0 {
		cc.MaxListSize = 1000
	}
	if cc.Redis.PoolSize == 0 {
		cc.Redis.PoolSize = 10
	}

	if c.Orchestrator.MaxParallelRequests == 0 {
		c.Orchestrator.MaxParallelRequests = utils.DefaultMaxParallelRequests
	}
	if c.Orchestrator.FetchTimeoutSec == 0 {
		c.Orchestrator.FetchTimeoutSec = int(utils.DefaultFetchTimeout / time.Second)
	}

	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.RetentionDays == 0 {
		c.Storage.RetentionDays = utils.DefaultRetentionDays
	}
	if c.Storage.Schema == "" {
		c.Storage.Schema = "public"
	}

	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10
	}

	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "provider-events"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if len(c.Regions) == 0 {
		c.Regions = []models.Region{models.RegionUS, models.RegionEU, models.RegionAsia}
	}

	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Type == "" {
			p.Type = strings.ToLower(p.Name)
		}
		if p.TimeoutSeconds == 0 {
			p.TimeoutSeconds = c.Network.RequestTimeout
		}
		if p.MaxBatchSize == 0 {
			p.MaxBatchSize = utils.DefaultMaxBatchSize
		}
		if p.SymbolStyle == "" {
			p.SymbolStyle = models.SymbolStyleSuffix
		}
		if p.Priority == 0 {
			p.Priority = (i + 1) * 10
		}
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535 || c.GrpcPort == c.Port) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Validate Router configuration
	if !c.Router.Strategy.Valid() {
		return fmt.Errorf("unknown routing strategy '%s'", c.Router.Strategy)
	}
	if c.Router.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Router.CircuitBreakerThreshold <= 0 {
		return fmt.Errorf("circuit breaker threshold must be greater than 0")
	}

	// Validate Cache configuration
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("redis address cannot be empty when cache backend is redis")
		}
	default:
		return fmt.Errorf("unknown cache backend '%s'", c.Cache.Backend)
	}

	// Validate Storage configuration
	if c.Storage.Enabled {
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
			return fmt.Errorf("unknown database type '%s'", c.Storage.DBType)
		}
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("network retries cannot be negative")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled without brokers")
	}

	// Validate Providers
	enabled := 0
	seen := make(map[string]bool)
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d must have a name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider '%s'", p.Name)
		}
		seen[p.Name] = true
		if p.RequestsPerMinute < 0 || p.RequestsPerDay < 0 {
			return fmt.Errorf("provider '%s': rate limits cannot be negative", p.Name)
		}
		if p.CostPerRequest < 0 || p.DailyBudget < 0 {
			return fmt.Errorf("provider '%s': cost and budget cannot be negative", p.Name)
		}
		switch p.SymbolStyle {
		case models.SymbolStyleSuffix, models.SymbolStyleExchangePrefix, models.SymbolStylePlain:
		default:
			return fmt.Errorf("provider '%s': unknown symbol style '%s'", p.Name, p.SymbolStyle)
		}
		for _, mt := range p.MarketTypes {
			if _, err := models.ParseMarketType(string(mt)); err != nil {
				return fmt.Errorf("provider '%s': %w", p.Name, err)
			}
		}
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("at least one provider must be enabled")
	}

	for _, r := range c.Regions {
		switch r {
		case models.RegionUS, models.RegionEU, models.RegionAsia:
		default:
			return fmt.Errorf("unknown region '%s'", r)
		}
	}

	for i, m := range c.SymbolMappings {
		if m.Canonical == "" || m.Provider == "" || m.ProviderSymbol == "" {
			return fmt.Errorf("symbol mapping %d needs canonical, provider and provider_symbol", i)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// EnabledProviders returns the provider configs marked enabled, in file order.
func (c *Config) EnabledProviders() []models.MProviderConfig {
	var out []models.MProviderConfig
	for _, p := range c.Providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
