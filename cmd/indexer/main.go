package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sitevane/indexer/internal/chunker"
	"github.com/sitevane/indexer/internal/config"
	"github.com/sitevane/indexer/internal/core/embeddings"
	"github.com/sitevane/indexer/internal/core/solr"
	"github.com/sitevane/indexer/internal/crawler"
	"github.com/sitevane/indexer/internal/linkgraph"
	"github.com/sitevane/indexer/internal/notify"
	"github.com/sitevane/indexer/internal/platform/observability"
	"github.com/sitevane/indexer/internal/registry"
	"github.com/sitevane/indexer/internal/scheduler"
	"github.com/sitevane/indexer/internal/storage"
	"github.com/sitevane/indexer/internal/writer"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setLogLevel(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	db, err := storage.Open(ctx, storage.Config{
		DSN:               cfg.Database.DSN,
		MaxConnections:    cfg.Database.MaxConnections,
		MinConnections:    cfg.Database.MinConnections,
		MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		HealthCheckPeriod: cfg.Database.HealthCheckPeriod,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open registry database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply registry migrations")
	}

	store := registry.New(db, &logger)

	solrClient := solr.New(solr.Config{
		BaseURL:    cfg.Solr.URL,
		Timeout:    cfg.Solr.Timeout,
		MaxResults: cfg.Solr.MaxResults,
	})

	if solrClient.Enabled() {
		if err := solrClient.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("Search index not reachable at startup, continuing")
		}
	}

	embeddingClient := embeddings.NewClient(ctx, embeddings.Config{
		OpenAIAPIKey:         cfg.Embeddings.OpenAIAPIKey,
		OpenAIModel:          cfg.Embeddings.OpenAIModel,
		OpenAIDimensions:     cfg.Embeddings.OpenAIDimensions,
		OpenAIRateLimit:      cfg.Embeddings.OpenAIRateLimit,
		CohereAPIKey:         cfg.Embeddings.CohereAPIKey,
		CohereModel:          cfg.Embeddings.CohereModel,
		CohereRateLimit:      cfg.Embeddings.CohereRateLimit,
		GoogleAPIKey:         cfg.Embeddings.GoogleAPIKey,
		GoogleModel:          cfg.Embeddings.GoogleModel,
		GoogleRateLimit:      cfg.Embeddings.GoogleRateLimit,
		ProviderOrder:        cfg.Embeddings.ProviderOrder,
		CircuitBreakerConfig: embeddings.DefaultCircuitBreakerConfig(),
		TargetDimensions:     cfg.Embeddings.TargetDimensions,
	}, &logger)

	passLimit := rate.NewLimiter(rate.Limit(cfg.PassFetchRate), burstFor(cfg.PassFetchRate))

	siteCrawler := crawler.New(cfg.Crawl, passLimit, chunker.New(embeddingClient), &logger)
	indexWriter := writer.New(solrClient, store, &logger)
	resolver := linkgraph.New(solrClient)

	notifier := notify.New(notify.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		AdminTo:  cfg.SMTP.AdminTo,
	}, &logger)

	sched := scheduler.New(cfg.Scheduler, store, resolver, indexWriter, siteCrawler, indexWriter, notifier, &logger)

	healthServer := observability.NewServer(db, cfg.HealthPort, &logger)

	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Health server error")
		}
	}()

	logger.Info().Msg("Starting indexer")

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("Indexer error")
	}

	logger.Info().Msg("Indexer stopped")
}

func burstFor(ratePerSecond float64) int {
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}

	return burst
}

// setLogLevel sets the global log level based on the configuration.
func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
