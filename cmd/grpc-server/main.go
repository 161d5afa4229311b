package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/health"
	"schoolsite/internal/server"
	"schoolsite/pkg/config"
	"schoolsite/pkg/database"
	"schoolsite/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.Init(&logger.Config{
		Level:      cfg.Log.Level,
		JSON:       cfg.Log.JSON,
		Output:     os.Stderr,
		TimeFormat: time.RFC3339,
		Prefix:     "grpc",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Error("database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	client := server.NewCMSClient(cfg.CMS, cmsclient.WithLogger(log))
	checker := health.NewChecker(2 * time.Second)
	checker.Add("db", db.PingContext)
	checker.Add("cms", client.Ping)

	listener, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", "addr", cfg.Server.GRPCAddr, "err", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	checker.Register(grpcServer)

	go checker.Run(logger.WithContext(ctx, log), 15*time.Second)
	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()

	log.Info("gRPC health server listening", "addr", cfg.Server.GRPCAddr)
	if err := grpcServer.Serve(listener); err != nil {
		log.Error("grpc server stopped", "err", err)
		os.Exit(1)
	}
}
