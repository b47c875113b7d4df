package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"mse-pipeline/src/config"
	pb "mse-pipeline/src/grpc_control"
	"mse-pipeline/src/interfaces"
	"mse-pipeline/src/logger"
	"mse-pipeline/src/server"
	"mse-pipeline/src/utils"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// startServers starts the HTTP API and the gRPC control server in the background.
func startServers(
	conf *config.Config,
	svc interfaces.IPipelineService,
	hub *server.Hub,
	appLogger *logger.Logger,
) (*server.FastAPIServer, *grpc.Server) {

	// 1. HTTP API + websocket progress
	srv := server.NewFastAPIServer(conf.MConfig, svc, hub, logger.NewLogger(conf.MConfig, "FastAPIServer"))
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 2. gRPC Control Server
	grpcServer := grpc.NewServer()
	pb.RegisterControlServer(grpcServer, pb.NewControlService(svc, logger.NewLogger(conf.MConfig, "ControlService")))

	go func() {
		port := conf.GrpcPort
		if port == 0 {
			port = 50051
		}
		lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.GrpcHost, port))
		if err != nil {
			appLogger.Error("failed to listen for gRPC: %v", err)
			return
		}
		appLogger.Info("Starting gRPC Control Server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("failed to serve gRPC: %v", err)
		}
	}()

	return srv, grpcServer
}

// -----------------------------------------------------------------------------

// startScheduler runs the daily stale refresh when pipeline.refresh_at is set.
func startScheduler(ctx context.Context, conf *config.Config, svc interfaces.IPipelineService, appLogger *logger.Logger) {
	if conf.Pipeline.RefreshAt == "" {
		return
	}

	schedLogger := logger.NewLogger(conf.MConfig, "MarketScheduler")
	sched, err := utils.NewMarketScheduler(utils.GetCalendar(schedLogger), conf.Pipeline.RefreshAt, schedLogger)
	if err != nil {
		appLogger.Error("Scheduler disabled: %v", err)
		return
	}
	refresh := dailyRefresh(svc, schedLogger)

	go func() {
		if err := sched.Run(ctx, refresh); err != nil {
			appLogger.Error("Scheduler stopped: %v", err)
		}
	}()
}

// -----------------------------------------------------------------------------

func dailyRefresh(svc interfaces.IPipelineService, schedLogger *logger.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		start := time.Now()
		codes, err := svc.FetchStale(ctx)
		if err != nil {
			schedLogger.Error("Daily refresh failed: %v", err)
			return
		}
		schedLogger.Info("Daily refresh updated %d issuers in %s", len(codes), time.Since(start).Round(time.Second))
	}
}
