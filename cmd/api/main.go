package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/lifequest/internal/app"
	"github.com/jwebster45206/lifequest/internal/config"
	"github.com/jwebster45206/lifequest/internal/handlers"
	"github.com/jwebster45206/lifequest/internal/logger"
	"github.com/jwebster45206/lifequest/internal/services/events"
	"github.com/jwebster45206/lifequest/internal/services/queue"
	"github.com/jwebster45206/lifequest/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting LifeQuest API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	startCtx, startCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startCancel()

	shutdownTracing, err := telemetry.Setup(startCtx, cfg, "lifequest-api")
	if err != nil {
		log.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}

	store, err := app.OpenStore(startCtx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

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
	turnQueue := queue.NewTurnQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.Redis(), log)

	health := handlers.NewHealthHandler("lifequest-api", map[string]handlers.Pinger{
		"store": store,
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			return queueClient.Redis().Ping(ctx).Err()
		}),
	}, log)

	mux := handlers.NewRouter(
		health,
		handlers.NewIngestHandler(turnQueue, broadcaster, log),
		handlers.NewTurnHandler(a.Orchestrator, log),
		handlers.NewPlayersHandler(store, cfg.Location(), log),
		handlers.NewEventsHandler(broadcaster, log),
	)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handlers.RequestLogger(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE stream stays open.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := queueClient.Close(); err != nil {
		log.Error("Error closing Redis connection", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error flushing traces", "error", err)
	}

	log.Info("Server exited")
}
