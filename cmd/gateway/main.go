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
	"ledger-socket/src/interfaces"
	"ledger-socket/src/logger"
	"ledger-socket/src/server"
	"ledger-socket/src/socket"
	"ledger-socket/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	// The operation log is read directly; the gateway still serves the ledger
	// routes when the store cannot be opened.
	var ops interfaces.IOperationLog
	db, err := storage.NewDatabase(cfg.MConfig)
	if err != nil {
		appLogger.Warning("Operation log unavailable, /operaciones disabled: %v", err)
	} else {
		defer db.Close()
		ops = db
	}

	client := socket.NewClient(cfg.MConfig, logger.NewLogger(cfg.MConfig, "SocketClient"))
	gw := server.NewGatewayServer(cfg.MConfig, client, ops, logger.NewLogger(cfg.MConfig, "Gateway"))

	go func() {
		if err := gw.Start(); err != nil {
			appLogger.Critical("Gateway failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gw.Stop(ctx); err != nil {
		appLogger.Warning("Gateway shutdown: %v", err)
	}
}
