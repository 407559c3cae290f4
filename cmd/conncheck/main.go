// Connectivity smoke test: connect to the gateway, qualify the
// configured instrument, list positions, disconnect.
package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"mabot/internal/broker"
	"mabot/internal/config"
	"mabot/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.json", "path to strategy config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	zapLog, err := logger.New()
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	gateway := broker.NewAlpaca(broker.AlpacaOpts{
		APIKey:    cfg.Conn.APIKey,
		APISecret: cfg.Conn.APISecret,
		BaseURL:   cfg.Conn.BaseURL,
		ClientID:  cfg.Conn.ClientID,
	}, zapLog)

	ctx := context.Background()
	if err := gateway.Connect(ctx); err != nil {
		zapLog.Fatal("connect failed, check gateway credentials and endpoint", zap.Error(err))
	}
	defer gateway.Disconnect()

	inst, err := gateway.QualifyInstrument(ctx, cfg.Ticker, cfg.Exchange, cfg.Currency)
	if err != nil {
		zapLog.Fatal("qualify failed", zap.Error(err))
	}

	positions, err := gateway.ListPositions(ctx)
	if err != nil {
		zapLog.Fatal("list positions failed", zap.Error(err))
	}
	for _, pos := range positions {
		zapLog.Info("position", zap.String("symbol", pos.Symbol), zap.Int("qty", pos.Qty), zap.String("avg_cost", pos.AvgCost.StringFixed(2)))
	}
	zapLog.Info("connectivity check passed", zap.String("symbol", inst.Symbol))
}
