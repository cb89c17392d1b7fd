package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"market-data-hub/src/config"
	"market-data-hub/src/models"

	"github.com/stretchr/testify/require"
)

const minimalYAML = `
name: hub
port: 8081
providers:
  - name: alpha
    enabled: true
    api_key: ${ALPHA_KEY}
  - name: beta
    enabled: false
`

func TestParseAppliesDefaultsAndExpandsEnv(t *testing.T) {
	// Arrange
	t.Setenv("ALPHA_KEY", "secret")

	// Act
	cfg, err := config.Parse([]byte(minimalYAML))

	// Assert
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.Providers[0].APIKey)
	require.Equal(t, "alpha", cfg.Providers[0].Type)
	require.Equal(t, 10, cfg.Providers[0].Priority)
	require.Equal(t, 20, cfg.Providers[1].Priority)
	require.Equal(t, models.SymbolStyleSuffix, cfg.Providers[0].SymbolStyle)
	require.Equal(t, models.StrategyPriority, cfg.Router.Strategy)
	require.Equal(t, 5, cfg.Router.CircuitBreakerThreshold)
	require.Equal(t, "market", cfg.Cache.KeyPrefix)
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.Len(t, cfg.Regions, 3)
	require.Equal(t, 60, cfg.Orchestrator.FetchTimeoutSec)
	require.Len(t, cfg.EnabledProviders(), 1)
}

func TestParseEnvOverridesWinOverFile(t *testing.T) {
	t.Setenv("MDH_PORT", "9090")
	t.Setenv("MDH_ROUTER_STRATEGY", "round_robin")
	t.Setenv("MDH_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := config.Parse([]byte(minimalYAML))

	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, models.StrategyRoundRobin, cfg.Router.Strategy)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestValidateRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"no enabled provider": "port: 8081\nproviders:\n  - name: a\n",
		"unknown strategy":    "port: 8081\nrouter:\n  strategy: fastest\nproviders:\n  - name: a\n    enabled: true\n",
		"redis without addr":  "port: 8081\ncache:\n  backend: redis\nproviders:\n  - name: a\n    enabled: true\n",
		"duplicate provider":  "port: 8081\nproviders:\n  - name: a\n    enabled: true\n  - name: a\n",
		"bad symbol style":    "port: 8081\nproviders:\n  - name: a\n    enabled: true\n    symbol_style: weird\n",
		"privileged port":     "port: 80\nproviders:\n  - name: a\n    enabled: true\n",
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	// Arrange
	cfg, err := config.Parse([]byte(minimalYAML))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "saved.yaml")

	// Act
	require.NoError(t, cfg.Save(path))
	loaded, err := config.NewConfig(path)

	// Assert
	require.NoError(t, err)
	require.Equal(t, cfg.Name, loaded.Name)
	require.Equal(t, cfg.Providers[0].Name, loaded.Providers[0].Name)
}

func TestShippedDefaultConfigLoads(t *testing.T) {
	path := filepath.Join("..", "..", "config", "default.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("default config not found")
	}

	cfg, err := config.NewConfig(path)

	require.NoError(t, err)
	require.NotEmpty(t, cfg.EnabledProviders())
}
