// Round-trip smoke test against the paper account: buy one share of the
// configured ticker, wait for the fill, sell it back, report the spread.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"mabot/internal/broker"
	"mabot/internal/config"
	"mabot/internal/engine"
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
		// Separate client id so the run is distinguishable from the bot's.
		ClientID: cfg.Conn.ClientID + 1,
	}, zapLog)

	ctx := context.Background()
	if err := gateway.Connect(ctx); err != nil {
		zapLog.Fatal("connect failed", zap.Error(err))
	}
	defer gateway.Disconnect()

	inst, err := gateway.QualifyInstrument(ctx, cfg.Ticker, cfg.Exchange, cfg.Currency)
	if err != nil {
		zapLog.Fatal("qualify failed", zap.Error(err))
	}

	executor := engine.NewExecutor(gateway, zapLog)

	buy, err := executor.Execute(ctx, inst, engine.OrderSpec{Side: broker.Buy, Qty: 1})
	if err != nil || buy.Status != engine.OutcomeFilled {
		zapLog.Fatal("buy leg did not fill", zap.Any("outcome", buy.Status), zap.Error(err))
	}

	time.Sleep(10 * time.Second)

	sell, err := executor.Execute(ctx, inst, engine.OrderSpec{Side: broker.Sell, Qty: 1})
	if err != nil || sell.Status != engine.OutcomeFilled {
		zapLog.Fatal("sell leg did not fill", zap.Any("outcome", sell.Status), zap.Error(err))
	}

	zapLog.Info("round trip complete",
		zap.String("bought_at", buy.FillPrice.StringFixed(2)),
		zap.String("sold_at", sell.FillPrice.StringFixed(2)),
		zap.String("pnl", sell.FillPrice.Sub(buy.FillPrice).StringFixed(2)))
}
