package main

import (
	"FrameForge/internal/config"
	"FrameForge/internal/pipeline"
	"FrameForge/internal/sdk"
	"FrameForge/internal/tracing"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	bootLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	cfg, err := config.NewConfigLoader(bootLogger).Load(*configPath)
	if err != nil {
		bootLogger.Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(ctx)

	hostPort := cfg.Temporal.HostPort
	if hostPort == "" {
		hostPort = client.DefaultHostPort
	}
	temporalClient, err := client.Dial(client.Options{
		HostPort: hostPort,
	})
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer temporalClient.Close()

	c, err := sdk.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to init extraction stack", zap.Error(err))
	}
	defer c.Close()

	temporalWorkflow := pipeline.NewTemporalWorkflow(temporalClient, logger, c.Extractor(), cfg.Temporal.TaskQueue)
	if err := temporalWorkflow.StartWorker(); err != nil {
		logger.Fatal("Failed to start Temporal worker", zap.Error(err))
	}
	defer temporalWorkflow.StopWorker()

	logger.Info("Temporal worker started successfully",
		zap.String("host_port", hostPort),
		zap.String("task_queue", cfg.Temporal.TaskQueue))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
}
