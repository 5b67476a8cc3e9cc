package main

import (
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"propeval/server/config"
	"propeval/server/internal/api"
	"propeval/server/internal/comparables"
	"propeval/server/internal/database"
	"propeval/server/internal/evaluation"
	"propeval/server/internal/jobs"
	"propeval/server/internal/llm"
	"propeval/server/internal/notify"
	"propeval/server/internal/queue"
	"propeval/server/internal/runner"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env file")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Server.DatabasePath), 0o755); err != nil {
		logger.WithError(err).Fatal("Failed to create database directory")
	}
	logger.Infof("Using database at: %s", cfg.Server.DatabasePath)

	db, err := database.NewDatabase(cfg.Server.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	llmClient := llm.NewClient(logger, cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.VisionModel)

	var sources []comparables.Source
	if cfg.Comparables.EndpointURL != "" {
		apiKey := ""
		if settings, err := db.GetAPISettings(); err == nil && settings != nil {
			apiKey = settings.DomainAPIKey
		}
		sources = append(sources, comparables.NewListingsAPISource(logger, "listings-api", cfg.Comparables.EndpointURL, apiKey))
	}
	aggregator := comparables.NewAggregator(logger, cfg.Comparables.FetchTimeout, sources...)

	summarizer := evaluation.NewSummarizer(logger, llmClient, cfg.Evaluation.SummaryMaxTokens, cfg.Evaluation.SummaryMaxChars, cfg.LLM.CompletionTimeout)
	composer := evaluation.NewComposer(logger, llmClient, cfg.Evaluation.ReportMaxTokens, cfg.LLM.CompletionTimeout)

	store := jobs.NewStore(logger, cfg.Evaluation.JobTTL)
	store.Start()
	defer store.Close()

	notifier := notify.NewService(logger)
	if nc, err := db.GetNotifierConfig(); err == nil && nc != nil {
		notifier.UpdateConfig(nc)
	}

	pipeline := evaluation.NewPipeline(logger, store, db, aggregator, llmClient, summarizer, composer, cfg.LLM.VisionTimeout)
	pipeline.SetNotifier(notifier)

	evalQueue := queue.NewEvaluationQueue(cfg.Evaluation.QueueSize, logger)
	workers := runner.NewRunner(pipeline, evalQueue, cfg.Evaluation.WorkerCount, logger)
	workers.Start()
	defer workers.Stop()
	defer evalQueue.Close()

	router := gin.Default()
	router.Use(cors.Default())

	handler := api.NewHandler(db, store, evalQueue, composer, notifier, logger)
	api.SetupRoutes(router, handler)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
