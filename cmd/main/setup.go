package main

import (
	"context"

	"market-data-hub/src/config"
	datasource "market-data-hub/src/data_source"
	"market-data-hub/src/events"
	"market-data-hub/src/grpc_control"
	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/metrics"
	"market-data-hub/src/orchestrator"
	"market-data-hub/src/server"
	"market-data-hub/src/storage"
)

// -----------------------------------------------------------------------------

// components is everything main starts and stops.
type components struct {
	Orchestrator *orchestrator.Orchestrator
	API          *server.APIServer
	Control      *grpc_control.ControlServer
}

// -----------------------------------------------------------------------------

// setupDatabase builds the archive when storage is enabled. The orchestrator
// initializes it and degrades to no archive when it cannot.
func setupDatabase(conf *config.Config) (interfaces.IDatabase, error) {
	if !conf.Storage.Enabled {
		return nil, nil
	}
	return storage.NewDatabase(conf.Storage, logger.NewLogger(conf.MConfig, "Archive"))
}

// -----------------------------------------------------------------------------

func setupMetrics(conf *config.Config) *metrics.Metrics {
	if !conf.Metrics.Enabled {
		return nil
	}
	return metrics.New(nil)
}

// -----------------------------------------------------------------------------

// setupComponents wires providers, archive, events, metrics, the orchestrator
// and both servers.
func setupComponents(ctx context.Context, conf *config.Config, appLogger *logger.Logger) (*components, error) {
	appLogger.Info("Initializing providers...")
	providers, err := datasource.NewProviders(conf.Providers, conf.Network, logger.NewLogger(conf.MConfig, "Providers"))
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		cfg := p.Config()
		appLogger.Info("Added provider: %s (priority %d, markets %v)", p.Name(), cfg.Priority, cfg.MarketTypes)
	}

	db, err := setupDatabase(conf)
	if err != nil {
		return nil, err
	}

	publisher, err := events.NewPublisher(conf.Kafka, logger.NewLogger(conf.MConfig, "Events"))
	if err != nil {
		return nil, err
	}

	m := setupMetrics(conf)
	control := grpc_control.NewControlServer(conf.MConfig, logger.NewLogger(conf.MConfig, "ControlService"))
	api := server.NewAPIServer(conf.MConfig, nil, m, logger.NewLogger(conf.MConfig, "APIServer"))

	orch, err := orchestrator.New(*conf.MConfig, orchestrator.Options{
		Providers:  providers,
		Archive:    db,
		Events:     publisher,
		Exchanger:  api,
		Metrics:    m,
		HealthSink: control,
	}, logger.NewLogger(conf.MConfig, "Orchestrator"))
	if err != nil {
		_ = publisher.Close()
		return nil, err
	}
	api.Service = orch

	if err := orch.Initialize(ctx); err != nil {
		_ = orch.Close()
		return nil, err
	}

	return &components{
		Orchestrator: orch,
		API:          api,
		Control:      control,
	}, nil
}
