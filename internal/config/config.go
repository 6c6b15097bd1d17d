// Package config loads the indexer process configuration from the
// environment, with an optional local .env file for development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/sitevane/indexer/internal/crawler"
	"github.com/sitevane/indexer/internal/scheduler"
)

// Config is the flat process configuration for cmd/indexer.
type Config struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	HealthPort int    `env:"HEALTH_PORT" envDefault:"8080"`

	// PassFetchRate caps outbound page fetches per second across every
	// concurrently running site crawl in one scheduler pass.
	PassFetchRate float64 `env:"PASS_FETCH_RATE" envDefault:"16"`

	Database   Database
	Solr       Solr
	Embeddings Embeddings
	SMTP       SMTP

	Crawl     crawler.Config
	Scheduler scheduler.Config
}

// Database configures the registry connection pool.
type Database struct {
	DSN               string        `env:"DATABASE_URL,required"`
	MaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	MinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	MaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"15m"`
	MaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"30s"`
}

// Solr configures the search index client.
type Solr struct {
	URL        string        `env:"SOLR_URL" envDefault:"http://solr:8983/solr/content"`
	Timeout    time.Duration `env:"SOLR_TIMEOUT" envDefault:"30s"`
	MaxResults int           `env:"SOLR_MAX_RESULTS" envDefault:"100"`
}

// Embeddings configures the embedding provider chain. With no API keys set
// the pipeline falls back to the mock provider, which keeps local
// development working without credentials.
type Embeddings struct {
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIModel      string `env:"OPENAI_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	OpenAIDimensions int    `env:"OPENAI_EMBEDDING_DIMENSIONS" envDefault:"1536"`
	OpenAIRateLimit  int    `env:"OPENAI_EMBEDDING_RATE_LIMIT" envDefault:"20"`

	CohereAPIKey    string `env:"COHERE_API_KEY"`
	CohereModel     string `env:"COHERE_EMBEDDING_MODEL" envDefault:"embed-english-v3.0"`
	CohereRateLimit int    `env:"COHERE_EMBEDDING_RATE_LIMIT" envDefault:"20"`

	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
	GoogleModel     string `env:"GOOGLE_EMBEDDING_MODEL" envDefault:"text-embedding-004"`
	GoogleRateLimit int    `env:"GOOGLE_EMBEDDING_RATE_LIMIT" envDefault:"20"`

	ProviderOrder    string `env:"EMBEDDING_PROVIDER_ORDER" envDefault:"openai,cohere,google"`
	TargetDimensions int    `env:"EMBEDDING_TARGET_DIMENSIONS" envDefault:"1536"`
}

// SMTP configures the admin notification relay. An empty host disables
// sending.
type SMTP struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"indexer@sitevane.net"`
	AdminTo  string `env:"SMTP_ADMIN_TO"`
}

// Load reads a local .env file when present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
