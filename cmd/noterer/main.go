package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/noterer/noterer/internal/actions"
	"github.com/noterer/noterer/internal/ai"
	"github.com/noterer/noterer/internal/config"
	"github.com/noterer/noterer/internal/conversation"
	"github.com/noterer/noterer/internal/flow"
	"github.com/noterer/noterer/internal/graph"
	"github.com/noterer/noterer/internal/notes"
	"github.com/noterer/noterer/internal/server"
	"github.com/noterer/noterer/internal/telemetry"
	"github.com/noterer/noterer/internal/tokens"
)

const version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("noterer", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := graph.Open(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to open graph store: %v", err)
	}
	defer store.Close()

	clientOpts := []ai.OpenAIOption{ai.WithModel(cfg.OpenAI.Model)}
	if cfg.OpenAI.BaseURL != "" {
		clientOpts = append(clientOpts, ai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	client := ai.NewOpenAIClient(cfg.OpenAI.APIKey, clientOpts...)

	flowOpts := []flow.Option{
		flow.WithLogger(logger),
		flow.WithHistoryTurns(cfg.Conversation.HistoryTurns),
	}
	if cfg.Conversation.HistoryBudget > 0 {
		budgeter := tokens.NewBudgeter(cfg.OpenAI.Model)
		flowOpts = append(flowOpts, flow.WithHistoryBudget(budgeter, cfg.Conversation.HistoryBudget))
	}
	controller := flow.New(client, flowOpts...)

	srv := server.New(logger)

	convAPI := &server.ConversationAPI{
		Registry:   conversation.NewRegistry(),
		Controller: controller,
		Handlers:   actions.NewRegistry(store),
		Logger:     logger,
	}
	convAPI.Register(srv.Router)

	graphAPI := &server.GraphAPI{
		Store:     store,
		Processor: notes.NewProcessor(client, store, logger),
		Logger:    logger,
	}
	graphAPI.Register(srv.Router)

	srv.RegisterInfo(version)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router,
	}

	go func() {
		logger.Info("starting server",
			slog.Int("port", cfg.Server.Port),
			slog.String("model", cfg.OpenAI.Model),
			slog.String("storage", cfg.Storage.SQLite.Path),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Server shutdown complete")
}
