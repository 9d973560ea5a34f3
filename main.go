package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"claimcast/chat"
	"claimcast/claims"
	"claimcast/config"
	"claimcast/db"
	"claimcast/forecast"
	qhttp "claimcast/http"
	"claimcast/llm"
	"claimcast/logging"
	"claimcast/ml"
	"claimcast/monitoring"
	"claimcast/pipeline"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("claimcast stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()

	// 2. Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	// 3. Load the dataset and the model store
	source := claims.Source{
		Format: cfg.Data.Format,
		Path:   cfg.Data.Path,
		DSN:    cfg.Data.Postgres.DSN,
		Table:  cfg.Data.Postgres.Table,
	}
	ingester := pipeline.NewDataIngester(source, pipeline.NewDataCleaner(logger), logger)
	history, err := ingester.Load(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	store, err := ml.LoadFile(cfg.Model.Path)
	missing := errors.Is(err, os.ErrNotExist)
	if err != nil && !missing {
		return fmt.Errorf("load models: %w", err)
	}

	svc, err := forecast.New(history, store, forecast.Options{
		Logger:          logger,
		Metrics:         metrics,
		DB:              database,
		Loader:          ingester.Load,
		SourceName:      source.String(),
		ModelPath:       cfg.Model.Path,
		MinTrainingRows: cfg.Model.MinTrainingRows,
		MinInsightRows:  cfg.Model.MinInsightRows,
		CacheSize:       cfg.Cache.Size,
	})
	if err != nil {
		return err
	}
	if missing {
		logger.Info("no saved models, training", zap.String("path", cfg.Model.Path))
		if _, err := svc.Retrain(ctx); err != nil {
			return fmt.Errorf("initial training: %w", err)
		}
	}

	// 4. Chat
	client := llm.NewClient(llm.Options{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if !client.Configured() {
		logger.Warn("no llm api key, chat answers use the formatted fallback", zap.String("env", config.APIKeyEnv))
	}
	quota := llm.NewQuota(cfg.LLM.DailyLimit, llm.WithUsageStore(database), llm.WithLogger(logger))
	responder := chat.NewResponder(svc, client, quota, metrics, logger)

	if cfg.Model.Watch {
		go func() {
			if err := svc.Watch(ctx, cfg.Model.Path, source.WatchPath()); err != nil {
				logger.Error("file watch stopped", zap.Error(err))
			}
		}()
	}

	// 5. Start HTTP server
	handler := qhttp.NewHandler(qhttp.Deps{
		Service:        svc,
		Responder:      responder,
		Quota:          quota,
		Metrics:        metrics,
		Logger:         logger,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.Timeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, handler)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()

	// 6. Handle graceful shutdown
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
	return nil
}
