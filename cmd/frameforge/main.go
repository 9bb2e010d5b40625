package main

import (
	"FrameForge/internal/api"
	"FrameForge/internal/api/handlers"
	"FrameForge/internal/config"
	"FrameForge/internal/enhance"
	"FrameForge/internal/pipeline"
	"FrameForge/internal/sdk"
	"FrameForge/internal/tracing"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

type methodList []string

func (m *methodList) String() string { return strings.Join(*m, ",") }

func (m *methodList) Set(v string) error {
	*m = append(*m, strings.Split(v, ",")...)
	return nil
}

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	videoPath := fs.String("video", "", "video file to extract from (extract)")
	frameRate := fs.Int("frame-rate", 0, "sample every Nth frame (extract)")
	confidence := fs.Float64("confidence", 0, "landmark visibility threshold (extract)")
	var methods methodList
	fs.Var(&methods, "method", "enhancement method, repeatable (extract)")
	_ = fs.Parse(args)

	bootLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	cfg, err := config.NewConfigLoader(bootLogger).Load(*configPath)
	if err != nil {
		bootLogger.Fatal("Failed to load config", zap.Error(err))
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		bootLogger.Fatal("Failed to build logger", zap.Error(err))
	}
	defer func(logger *zap.Logger) {
		if err := logger.Sync(); err != nil {
			log.Printf("error syncing logger: %v", err)
		}
	}(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Fatal("Failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	c, err := sdk.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to init extraction stack", zap.Error(err))
	}
	defer c.Close()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, c, logger)
	case "extract":
		params := c.Defaults()
		if *frameRate != 0 {
			params.FrameRate = *frameRate
		}
		if *confidence != 0 {
			params.ConfidenceThreshold = *confidence
		}
		if len(methods) > 0 {
			var unknown []string
			params.Methods, unknown = enhance.ParseMethods(methods)
			if len(unknown) > 0 {
				logger.Warn("Ignoring unknown enhancement methods", zap.Strings("methods", unknown))
			}
		}
		err = extract(ctx, c, *videoPath, params)
	default:
		err = fmt.Errorf("unknown command %q (want serve or extract)", cmd)
	}
	if err != nil {
		logger.Error("Command failed", zap.String("command", cmd), zap.Error(err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, c *sdk.Client, logger *zap.Logger) error {
	var processor handlers.Processor = c.Extractor()

	if cfg.Temporal.HostPort != "" {
		temporalClient, err := client.Dial(client.Options{HostPort: cfg.Temporal.HostPort})
		if err != nil {
			return fmt.Errorf("failed to create temporal client: %w", err)
		}
		defer temporalClient.Close()
		processor = pipeline.NewTemporalWorkflow(temporalClient, logger, c.Extractor(), cfg.Temporal.TaskQueue)
		logger.Info("Dispatching extractions through Temporal",
			zap.String("host_port", cfg.Temporal.HostPort),
			zap.String("task_queue", cfg.Temporal.TaskQueue))
	}

	var history handlers.HistoryReader
	if cfg.Database.DSN != "" {
		history = c
	}

	server := api.NewServer(processor, c.Store(), history, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func extract(ctx context.Context, c *sdk.Client, videoPath string, params pipeline.Params) error {
	if videoPath == "" {
		return errors.New("-video is required")
	}
	out, err := c.ExtractFile(ctx, videoPath, params)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
