package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LightningFastRom/mediafs/internal/logger"
	"github.com/LightningFastRom/mediafs/internal/server"
	"github.com/LightningFastRom/mediafs/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	fmt.Println("mediafs - scoped storage mediation daemon")
	logger.Info("volume root: %s", cfg.Volume.Root)
	logger.Info("mountpoint: %s", cfg.Volume.Mountpoint)
	logger.Info("ledger backend: %s", cfg.Ledger.Type)

	daemon, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to assemble daemon: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("daemon running, press Ctrl+C to stop")
	if err := daemon.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("daemon error: %v", err)
		os.Exit(1)
	}

	logger.Info("shut down cleanly")
}
