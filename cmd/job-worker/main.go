// Package main 异步生成任务执行器入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"dreamteller-api/internal/config"
	"dreamteller-api/internal/infrastructure/messaging"
	einoobs "dreamteller-api/internal/observability/eino"
	"dreamteller-api/internal/wire"
	"dreamteller-api/pkg/logger"
	"dreamteller-api/pkg/tracer"
)

// dlqAlertThreshold 死信流超过该长度时告警
const dlqAlertThreshold = 10

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Jobs.Enabled {
		logger.Fatal(ctx, "job-worker requires jobs.enabled", fmt.Errorf("async jobs disabled"))
	}

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName:    cfg.App.Name + "-worker",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Env,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	einoobs.Init()

	worker, cleanup, err := wire.InitializeWorker(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	worker.Consumer.RegisterHandler(messaging.MessageTypeStoryGen, worker.Runner.Handle)
	if err := worker.Consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}
	go worker.Consumer.MonitorDLQ(ctx, dlqAlertThreshold)

	logger.Info(ctx, "job-worker started",
		"stream", messaging.StreamStoryGen,
		"auto_archive", cfg.Jobs.AutoArchive,
	)

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down job-worker")
	worker.Consumer.Stop()
	logger.Info(context.Background(), "job-worker exited")
}
