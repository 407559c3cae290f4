package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"mabot/internal/broker"
	"mabot/internal/config"
	"mabot/internal/engine"
	"mabot/internal/logger"
)

func main() {
	configPath := flag.String("config", "config.json", "path to strategy config")
	journalPath := flag.String("journal", "trades.ndjson", "path to trade journal")
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

	journal, err := engine.NewJournal(*journalPath)
	if err != nil {
		zapLog.Fatal("journal error", zap.Error(err))
	}
	defer func() {
		if err := journal.Close(); err != nil {
			zapLog.Error("failed to close journal", zap.Error(err))
		}
	}()

	gateway := broker.NewAlpaca(broker.AlpacaOpts{
		APIKey:    cfg.Conn.APIKey,
		APISecret: cfg.Conn.APISecret,
		BaseURL:   cfg.Conn.BaseURL,
		ClientID:  cfg.Conn.ClientID,
	}, zapLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		zapLog.Info("shutdown signal received")
		cancel()
	}()

	if err := engine.New(cfg, gateway, journal, zapLog).Run(ctx); err != nil {
		zapLog.Error("bot stopped with error", zap.Error(err))
		os.Exit(1)
	}
	zapLog.Info("bot shutdown complete")
}
