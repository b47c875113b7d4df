package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mse-pipeline/src/config"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/server"
	"mse-pipeline/src/service"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(conf.MConfig, conf.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Progress hub first, runs publish into it
	hub := server.NewHub(logger.NewLogger(conf.MConfig, "Hub"))
	go hub.Run(ctx)

	svc, err := service.Build(ctx, conf, hub, appLogger)
	if err != nil {
		appLogger.Critical("Failed to build service: %v", err)
	}
	defer svc.Close()

	srv, grpcServer := startServers(conf, svc, hub, appLogger)
	startScheduler(ctx, conf, svc, appLogger)

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Error("HTTP shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	appLogger.Info("Shutdown complete.")
}
