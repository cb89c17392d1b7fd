package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"market-data-hub/src/config"
	datasource "market-data-hub/src/data_source"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"
	"market-data-hub/src/orchestrator"
)

// probe fetches quotes (and optionally bars) once through the full routing
// stack and prints them as JSON. Logs go to stderr.
func main() {
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	symbols := flag.String("symbols", "AAPL", "comma separated symbols")
	market := flag.String("market", "", "market type, inferred from the symbol when empty")
	timeframe := flag.String("timeframe", "", "also fetch bars of this timeframe (1min ... 1month)")
	days := flag.Int("days", 5, "lookback for bars")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger(conf.MConfig, "Probe")
	log.SetOutput(os.Stderr)

	var mt models.MarketType
	if *market != "" {
		if mt, err = models.ParseMarketType(*market); err != nil {
			log.Critical("%v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	providers, err := datasource.NewProviders(conf.Providers, conf.Network, log.Named("Providers"))
	if err != nil {
		log.Critical("%v", err)
	}
	orch, err := orchestrator.New(*conf.MConfig, orchestrator.Options{Providers: providers}, log)
	if err != nil {
		log.Critical("%v", err)
	}
	defer orch.Close()
	if err := orch.Initialize(ctx); err != nil {
		log.Critical("%v", err)
	}

	out := map[string]any{}
	list := strings.Split(*symbols, ",")

	quotes, err := orch.GetQuotes(ctx, list, mt, true)
	if err != nil {
		out["quotes_error"] = err.Error()
	}
	out["quotes"] = quotes

	if *timeframe != "" {
		tf, err := models.ParseTimeFrame(*timeframe)
		if err != nil {
			log.Critical("%v", err)
		}
		end := time.Now().UTC()
		bars, err := orch.GetHistoricalBatch(ctx, list, end.AddDate(0, 0, -*days), end, tf, mt, true)
		if err != nil {
			out["bars_error"] = err.Error()
		}
		out["bars"] = bars
	}
	out["status"] = orch.GetStatus(ctx).Providers

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Error("encode: %v", err)
	}
}
