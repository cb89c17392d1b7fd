package main

import (
	"time"

	"market-data-hub/src/logger"
)

// shutdown budget per server
const stopTimeout = 5 * time.Second

// -----------------------------------------------------------------------------

// startServers runs the REST/websocket server and the gRPC control server.
// The first failure is reported on the returned channel.
func startServers(c *components, appLogger *logger.Logger) <-chan error {
	errs := make(chan error, 2)

	// 1. API server
	go func() {
		if err := c.API.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
			errs <- err
		}
	}()

	// 2. gRPC Control Server
	go func() {
		if err := c.Control.Start(); err != nil {
			appLogger.Error("gRPC server failed: %v", err)
			errs <- err
		}
	}()

	return errs
}

// -----------------------------------------------------------------------------

// stopServers stops intake first, then the orchestrator and what it owns.
func stopServers(c *components, appLogger *logger.Logger) {
	if err := c.API.Stop(); err != nil {
		appLogger.Warning("API server stop: %v", err)
	}
	c.Control.Stop(stopTimeout)

	if err := c.Orchestrator.Close(); err != nil {
		appLogger.Warning("Orchestrator close: %v", err)
	}
}
