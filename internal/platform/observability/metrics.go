package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler metrics.
	SchedulerPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_scheduler_pass_duration_seconds",
		Help:    "Duration of a full scheduler pass",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})

	SchedulerDomainsSelected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "indexer_scheduler_domains_selected",
		Help: "Number of domains selected for crawling in the most recent pass",
	})

	SchedulerDomainsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_scheduler_domains_processed_total",
		Help: "Total number of domains processed by the scheduler, by outcome",
	}, []string{"outcome"})

	SchedulerMaintenanceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_scheduler_maintenance_duration_seconds",
		Help:    "Duration of the maintenance sweep",
		Buckets: prometheus.DefBuckets,
	})

	// Crawl metrics.
	PagesCrawled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_pages_crawled_total",
		Help: "Total number of pages fetched, by domain and result",
	}, []string{"domain", "result"})

	CrawlDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indexer_crawl_duration_seconds",
		Help:    "Duration of a single site crawl",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"crawl_type"})

	CrawlPagesFetched = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "indexer_crawl_pages_fetched",
		Help:    "Number of pages fetched per site crawl",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	RobotsDisallowed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_robots_disallowed_total",
		Help: "Total number of URLs skipped due to robots.txt disallow rules",
	}, []string{"domain"})

	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_fetch_errors_total",
		Help: "Total number of fetch errors, by domain and error class",
	}, []string{"domain", "class"})

	// Parser metrics.
	PagesParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_pages_parsed_total",
		Help: "Total number of pages parsed, by content type and outcome",
	}, []string{"content_type", "outcome"})

	PagesExcludedByType = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_pages_excluded_total",
		Help: "Total number of pages excluded from indexing, by reason",
	}, []string{"reason"})

	// Chunking metrics.
	ChunksGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_chunks_generated_total",
		Help: "Total number of content chunks generated",
	}, []string{"reused"})

	ChunksDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "indexer_chunks_dropped_total",
		Help: "Total number of chunks dropped after embedding failures or truncation",
	})

	// Writer metrics.
	DocumentsCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_documents_committed_total",
		Help: "Total number of documents committed to the search index, by domain",
	}, []string{"domain"})

	DocumentsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_documents_deleted_total",
		Help: "Total number of documents removed from the search index, by reason",
	}, []string{"reason"})

	ZeroDocumentWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_zero_document_warnings_total",
		Help: "Total number of zero-document commit warnings, by domain",
	}, []string{"domain"})

	DomainsDisabled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_domains_disabled_total",
		Help: "Total number of domains auto-disabled, by reason",
	}, []string{"reason"})

	// Notification metrics.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_notifications_sent_total",
		Help: "Total number of notification emails sent, by kind and status",
	}, []string{"kind", "status"})

	// Embedding metrics, depended on by internal/core/embeddings.
	EmbeddingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_embedding_requests_total",
		Help: "Total number of embedding requests, by provider, model, and status",
	}, []string{"provider", "model", "status"})

	EmbeddingTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_embedding_tokens_total",
		Help: "Total number of tokens submitted for embedding, by provider and model",
	}, []string{"provider", "model"})

	EmbeddingEstimatedCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_embedding_estimated_cost_millicents_total",
		Help: "Estimated embedding cost in millicents (0.001 cents), by provider and model",
	}, []string{"provider", "model"})

	EmbeddingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indexer_embedding_request_latency_seconds",
		Help:    "Latency of embedding requests by provider and model",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"provider", "model"})

	EmbeddingFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_embedding_fallbacks_total",
		Help: "Total number of embedding provider fallback events",
	}, []string{"from_provider", "to_provider"})

	EmbeddingProviderAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "indexer_embedding_provider_available",
		Help: "Whether an embedding provider is currently available (0=no, 1=yes)",
	}, []string{"provider"})

	EmbeddingCircuitBreakerOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexer_embedding_circuit_breaker_opens_total",
		Help: "Total number of times the embedding circuit breaker opened, by provider",
	}, []string{"provider"})
)
