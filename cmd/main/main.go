package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-data-hub/src/config"
	"market-data-hub/src/logger"
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	logger.SetLevel(conf.LogLevel)
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)

	// 4. Setup Components
	initCtx, cancelInit := context.WithTimeout(context.Background(), time.Minute)
	c, err := setupComponents(initCtx, conf, appLogger)
	cancelInit()
	if err != nil {
		appLogger.Critical("Startup failed: %v", err)
	}
	appLogger.Info("Initialization complete.")

	// 5. Start Servers
	serverErrs := startServers(c, appLogger)

	// 6. Wait for a signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received %s, shutting down...", sig)
	case err := <-serverErrs:
		appLogger.Error("Shutting down after server failure: %v", err)
	}

	stopServers(c, appLogger)
	appLogger.Info("Shutdown complete.")
}
