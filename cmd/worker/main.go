package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/app"
	"github.com/jwebster45206/lifequest/internal/config"
	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/internal/services/queue"
	"github.com/jwebster45206/lifequest/internal/telemetry"
	"github.com/jwebster45206/lifequest/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = uuid.New().String()[:8]
	}
	log.Info("Starting LifeQuest Worker",
		"environment", cfg.Environment,
		"worker_id", workerID,
		"workers", cfg.WorkerCount,
		"sweep_interval", cfg.SweepInterval)

	startCtx, startCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startCancel()

	shutdownTracing, err := telemetry.Setup(startCtx, cfg, "lifequest-worker")
	if err != nil {
		log.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}

	store, err := app.OpenStore(startCtx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()

	a, err := app.Build(startCtx, cfg, store, log)
	if err != nil {
		log.Error("Failed to build game services", "error", err)
		os.Exit(1)
	}

	queueClient, err := queue.NewClient(startCtx, cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	turnQueue := queue.NewTurnQueue(queueClient)

	workers := make([]*worker.Worker, cfg.WorkerCount)
	for i := range workers {
		workers[i] = worker.New(turnQueue, a.Orchestrator, a.Sweeper, queueClient.Redis(), log,
			fmt.Sprintf("%s-%d", workerID, i))
	}
	pool := worker.NewPool(workers, a.Sweeper, cfg.SweepInterval, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Worker started, waiting for requests...")
	if err := pool.Run(ctx); err != nil {
		log.Error("Worker pool error", "error", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Error("Error flushing traces", "error", err)
	}
	log.Info("Worker exited")
}
