package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger-socket/src/config"
	"ledger-socket/src/control"
	"ledger-socket/src/ledger"
	"ledger-socket/src/logger"
	"ledger-socket/src/socket"
	"ledger-socket/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config: defaults, YAML file, then environment
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	// 1. Storage
	db, err := storage.NewDatabase(cfg.MConfig)
	if err != nil {
		appLogger.Critical("Failed to open store: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Storage.SeedSampleData {
		n, err := storage.SeedAccounts(ctx, db, storage.SampleAccounts)
		if err != nil {
			appLogger.Warning("Seeding sample accounts failed: %v", err)
		} else if n > 0 {
			appLogger.Info("Seeded %d sample accounts", n)
		}
	}

	// 2. Ledger and TCP server
	l := ledger.NewLedger(db, db, logger.NewLogger(cfg.MConfig, "Ledger"))
	srv := socket.NewServer(cfg.MConfig, l, logger.NewLogger(cfg.MConfig, "SocketServer"))
	if err := srv.Listen(); err != nil {
		appLogger.Critical("%v", err)
	}

	// 3. gRPC health control plane
	health := control.NewHealthService(cfg.MConfig, db, logger.NewLogger(cfg.MConfig, "ControlService"))
	go func() {
		if err := health.Start(ctx); err != nil {
			appLogger.Error("Control plane failed: %v", err)
		}
	}()

	go func() {
		if err := srv.Serve(); err != nil {
			appLogger.Error("Socket server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	health.Stop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warning("Forced close of open connections: %v", err)
	}
}
