package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finpilot/internal/ai"
	"finpilot/internal/amqp"
	"finpilot/internal/cli"
	"finpilot/internal/log"
	"finpilot/internal/services"
	"finpilot/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting statement-worker")

	if cfg.DataBackend != "sqlite" {
		logger.Error("statement-worker needs a shared store, set DATA_BACKEND=sqlite")
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("statement-worker needs AMQP_URL")
		os.Exit(1)
	}
	if !cfg.AIEnabled() {
		logger.Warn("OPENAI_API_KEY not set, every statement will fail extraction")
	}

	res := cli.InitStore(context.Background(), logger, cfg)
	defer res.Cleanup()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// The worker never republishes, so the service gets no publisher.
	statements := services.NewStatementService(res.Store, ai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel), nil)
	w := worker.NewStatementWorker(statements, res.Store, cfg.WorkerBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := w.Run(ctx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker shutdown complete")
}
