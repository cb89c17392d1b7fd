package datasource

import (
	"fmt"
	"strings"
	"time"

	"market-data-hub/src/data_source/finnhub"
	"market-data-hub/src/data_source/yahoo"
	"market-data-hub/src/helpers"
	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"
	"market-data-hub/src/network"
)

// NewProvider builds the adapter named by cfg.Type with its own HTTP client:
// the vendor's timeout and retry policy override the shared network settings.
func NewProvider(cfg models.MProviderConfig, netCfg models.MNetworkConfig, log *logger.Logger) (interfaces.IProvider, error) {
	if cfg.TimeoutSeconds > 0 {
		netCfg.RequestTimeout = cfg.TimeoutSeconds
	}
	netCfg.MaxRetries = cfg.RetryCount

	nm := network.NewAsyncNetworkManager(netCfg, log.Named("Network."+cfg.Name))
	if cfg.RetryDelayMs > 0 {
		nm.BaseDelay = time.Duration(cfg.RetryDelayMs) * time.Millisecond
	}

	switch strings.ToLower(cfg.Type) {
	case "yahoo":
		return yahoo.NewYahooFinanceSource(cfg, nm, log.Named("YahooFinanceSource-"+cfg.Name)), nil
	case "finnhub":
		return finnhub.NewFinnhubSource(cfg, nm, log.Named("FinnhubSource-"+cfg.Name)), nil
	}
	return nil, helpers.NewConfigurationError(fmt.Sprintf("provider %s: unknown type %q", cfg.Name, cfg.Type), nil)
}

// -----------------------------------------------------------------------------

// NewProviders builds every enabled provider. Unknown types are fatal.
func NewProviders(cfgs []models.MProviderConfig, netCfg models.MNetworkConfig, log *logger.Logger) ([]interfaces.IProvider, error) {
	var providers []interfaces.IProvider
	for _, pc := range cfgs {
		if !pc.Enabled {
			log.Info("Provider %s disabled, skipping", pc.Name)
			continue
		}
		p, err := NewProvider(pc, netCfg, log)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
		log.Info("Added provider: %s (type %s, priority %d)", pc.Name, pc.Type, pc.Priority)
	}

	if len(providers) == 0 {
		return nil, helpers.NewConfigurationError("no enabled providers", nil)
	}
	return providers, nil
}
