package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-depth/src/book"
	"market-depth/src/config"
	"market-depth/src/feed"
	"market-depth/src/hub"
	"market-depth/src/interfaces"
	"market-depth/src/logger"
	"market-depth/src/network"
	"market-depth/src/server"
	"market-depth/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Fan-out core and read model
	h := hub.NewHub(appLogger.Named("Hub"))
	tracker := book.NewTracker(appLogger.Named("Tracker"))

	// 2. Feed selection
	var dataFeed interfaces.IMarketDataFeed

	switch cfg.Feed.Mode {
	case "binance":
		netMgr := network.NewManager(cfg.MConfig, appLogger.Named("Network"))
		dataFeed = feed.NewBinanceLiveFeed(cfg.Feed, netMgr, appLogger.Named("BinanceFeed"))
	default:
		dataFeed = feed.NewSimulationFeed(cfg.Feed, appLogger.Named("SimulationFeed"))
	}

	dataFeed.AddObserver(h)
	dataFeed.AddObserver(tracker)

	// 3. Optional persistence sink
	var recorder *storage.Recorder

	if cfg.Storage.Enabled {
		var sink interfaces.IPersistenceSink

		switch cfg.Storage.DBType {
		case "postgres":
			sink, err = storage.NewPostgresSink(cfg.MConfig, appLogger.Named("Postgres"))
		default:
			// Default to SQLite
			sink, err = storage.NewSQLiteSink(cfg.MConfig, appLogger.Named("SQLite"))
		}

		if err != nil {
			appLogger.Critical("Failed to init sink: %v", err)
		}
		if err := sink.Initialize(); err != nil {
			appLogger.Critical("Failed to migrate sink: %v", err)
		}
		defer sink.Close()

		recorder = storage.NewRecorder(sink, appLogger.Named("Recorder"))
		recorder.Start(ctx)
		dataFeed.AddObserver(recorder)
	}

	// 4. Start the feed
	if err := dataFeed.Start(ctx); err != nil {
		appLogger.Critical("Failed to start %s feed: %v", dataFeed.Name(), err)
	}
	appLogger.Info("Feed %s started for instruments %v", dataFeed.Name(), cfg.Feed.Instruments)

	// 5. Start the streaming server
	srv := server.NewServer(cfg.MConfig, appLogger.Named("Server"), h, tracker)
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 6. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	dataFeed.Stop()
	if recorder != nil {
		recorder.Stop()
	}
}
