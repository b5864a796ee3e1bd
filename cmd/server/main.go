package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/amendbot/amend/internal/api/rest"
	"github.com/amendbot/amend/internal/config"
	"github.com/amendbot/amend/internal/generator"
	"github.com/amendbot/amend/internal/github"
	"github.com/amendbot/amend/internal/updater"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	// Create GitHub client
	githubClient := github.NewClient(cfg.GitHubToken, github.Options{
		MaxFileBytes:      cfg.MaxFileBytes,
		SkipExtensions:    cfg.SkipExtensions,
		FetchWorkers:      cfg.FetchWorkers,
		RequestsPerSecond: cfg.GitHubRPS,
	}, logger)

	// Create change generator
	gen, err := generator.New(cfg.GeneratorMode, cfg.OpenAIKey, generator.Options{
		Model:     cfg.OpenAIModel,
		MaxTokens: cfg.OpenAIMaxTokens,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create generator", zap.Error(err))
	}

	// Create update pipeline
	pipeline := updater.New(githubClient, gen, githubClient, logger)

	// Create REST API handler
	restHandler := rest.NewHandler(pipeline, logger)

	// Setup REST API
	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		restHandler.RegisterRoutes(r)
	})
	router.Get("/health", restHandler.Health(cfg.GitHubToken != "", cfg.OpenAIKey != ""))

	// Start REST server
	restAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	restServer := &http.Server{
		Addr:    restAddr,
		Handler: router,
	}

	go func() {
		logger.Info("starting REST API server", zap.String("address", restAddr))
		if err := restServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start REST server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	restServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
