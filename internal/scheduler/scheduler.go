// Package scheduler drives the indexing pipeline: each pass selects the
// domains due for a full or incremental reindex, marks them RUNNING in the
// same transaction, materialises a per-job Site Configuration, and runs the
// crawl → parse → chunk → commit chain for every selected domain
// concurrently. Maintenance (stuck-job detection and tier-based listing
// expiry) runs as a periodic task alongside the passes.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitevane/indexer/internal/crawler"
	"github.com/sitevane/indexer/internal/domainid"
	"github.com/sitevane/indexer/internal/platform/observability"
	"github.com/sitevane/indexer/internal/platform/worker"
	"github.com/sitevane/indexer/internal/registry"
	"github.com/sitevane/indexer/internal/siteconfig"
	"github.com/sitevane/indexer/internal/writer"
)

const tier3 = 3

// registryStore is the slice of the registry the scheduler needs.
type registryStore interface {
	SelectAndStart(ctx context.Context) ([]registry.SelectedDomain, error)
	FiltersForDomain(ctx context.Context, domain string) ([]registry.Filter, error)
	SubdomainsAllowed(ctx context.Context) ([]string, error)
	AllOtherDomains(ctx context.Context) (map[string]struct{}, error)
	Complete(ctx context.Context, domain string, fullIndex, success bool, message string) error
	StuckDomains(ctx context.Context) ([]string, error)
	Tiers(ctx context.Context) (map[int]registry.Tier, error)
	ExpiredListingsForTier(ctx context.Context, tier int) ([]registry.ExpiredListing, error)
	ExpireTier1ToModeratorReview(ctx context.Context, domain string) error
	DemoteToLowerTier(ctx context.Context, domain string, lower registry.Tier) error
}

// indexReader pre-fetches per-job state from the search index.
type indexReader interface {
	Inlinks(ctx context.Context, domain string) (map[string][]string, error)
	PriorContents(ctx context.Context, domain string) (map[string]siteconfig.PriorContent, error)
	AlreadyIndexedURLs(ctx context.Context, domain string) (map[string]struct{}, error)
}

// indexCleaner deletes a domain's documents, used by tier-1 listing expiry.
type indexCleaner interface {
	DeleteDomain(ctx context.Context, domain string) error
}

// siteCrawler runs one site's crawl.
type siteCrawler interface {
	Crawl(ctx context.Context, cfg *siteconfig.Config) (crawler.Result, error)
}

// committer lands a crawl's output in the index and registry.
type committer interface {
	Commit(ctx context.Context, cfg *siteconfig.Config, result crawler.Result) (writer.Result, error)
}

// notifier sends admin emails for tier-3 events.
type notifier interface {
	TierExpiryNotice(ctx context.Context, domain string) error
	RepeatedFailureNotice(ctx context.Context, domain, reason string) error
}

// Config bounds one scheduler's cadence and pass-level parallelism.
type Config struct {
	// PassInterval is the gap between scheduling passes.
	PassInterval time.Duration `env:"SCHEDULER_PASS_INTERVAL" envDefault:"60s"`

	// MaxConcurrentSites bounds how many selected domains crawl at once
	// within one pass.
	MaxConcurrentSites int `env:"SCHEDULER_MAX_CONCURRENT_SITES" envDefault:"8"`

	// MaintenanceInterval is the cadence of the stuck-job sweep and listing
	// expiry. Matching the pass interval runs maintenance once per pass.
	MaintenanceInterval time.Duration `env:"SCHEDULER_MAINTENANCE_INTERVAL" envDefault:"60s"`
}

// Scheduler composes the registry, the index readers, the crawler, and the
// writer into the run-once pass.
type Scheduler struct {
	cfg      Config
	store    registryStore
	index    indexReader
	cleaner  indexCleaner
	crawler  siteCrawler
	writer   committer
	notifier notifier
	logger   *zerolog.Logger
}

// New builds a Scheduler.
func New(
	cfg Config, store registryStore, index indexReader, cleaner indexCleaner,
	siteCrawler siteCrawler, committer committer, n notifier, logger *zerolog.Logger,
) *Scheduler {
	if cfg.MaxConcurrentSites <= 0 {
		cfg.MaxConcurrentSites = 8
	}

	return &Scheduler{
		cfg:      cfg,
		store:    store,
		index:    index,
		cleaner:  cleaner,
		crawler:  siteCrawler,
		writer:   committer,
		notifier: n,
		logger:   logger,
	}
}

// Run loops RunOnce at the configured cadence until ctx is canceled, with
// the maintenance sweep as a periodic task on its own interval.
func (s *Scheduler) Run(ctx context.Context) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "scheduler",
		PollInterval: s.cfg.PassInterval,
		Process:      s.RunOnce,
		PeriodicTasks: []worker.PeriodicTask{{
			Name:     "maintenance",
			Interval: s.cfg.MaintenanceInterval,
			Run:      s.runMaintenance,
		}},
		Logger: s.logger,
	})
}

// RunOnce executes one scheduling pass: selection, then one concurrent
// crawl-and-commit per selected domain. Maintenance is not part of it; Run
// schedules it as a separate periodic task. Per-domain failures are
// logged and the pass continues; only selection-level failures propagate.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	started := time.Now()
	defer func() {
		observability.SchedulerPassDuration.Observe(time.Since(started).Seconds())
	}()

	common, err := s.loadCommon(ctx)
	if err != nil {
		return fmt.Errorf("load common pass data: %w", err)
	}

	selected, err := s.store.SelectAndStart(ctx)
	if err != nil {
		return fmt.Errorf("select due domains: %w", err)
	}

	observability.SchedulerDomainsSelected.Set(float64(len(selected)))

	if len(selected) == 0 {
		return nil
	}

	s.logger.Info().Int("count", len(selected)).Msg("scheduler: selected domains for reindex")

	sem := make(chan struct{}, s.cfg.MaxConcurrentSites)

	var wg sync.WaitGroup

	for _, sel := range selected {
		wg.Add(1)

		go func(sel registry.SelectedDomain) {
			defer wg.Done()
			defer worker.RecoverPanic(s.logger, "site job "+sel.Domain.Domain)

			sem <- struct{}{}
			defer func() { <-sem }()

			s.runSiteJob(ctx, sel, common)
		}(sel)
	}

	wg.Wait()

	return nil
}

// loadCommon loads the data shared read-only by every job of one pass: the
// set of registered domains and the subdomain-allowed suffix list.
func (s *Scheduler) loadCommon(ctx context.Context) (siteconfig.Common, error) {
	suffixes, err := s.store.SubdomainsAllowed(ctx)
	if err != nil {
		return siteconfig.Common{}, fmt.Errorf("load subdomain-allowed suffixes: %w", err)
	}

	domains, err := s.store.AllOtherDomains(ctx)
	if err != nil {
		return siteconfig.Common{}, fmt.Errorf("load registered domains: %w", err)
	}

	return siteconfig.Common{
		OtherDomains:      domains,
		SubdomainsAllowed: suffixes,
		Extractor:         domainid.NewExtractor(suffixes),
	}, nil
}

// runSiteJob materialises one Site Configuration, crawls, and commits. The
// domain is already RUNNING; any outcome short of a commit leaves it RUNNING
// for the stuck-job sweep to surface.
func (s *Scheduler) runSiteJob(ctx context.Context, sel registry.SelectedDomain, common siteconfig.Common) {
	logger := s.logger.With().Str("domain", sel.Domain.Domain).Bool("full_index", sel.FullIndex).Logger()

	cfg, skip, err := s.materialise(ctx, sel, common)
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: failed to prepare site configuration")
		observability.SchedulerDomainsProcessed.WithLabelValues("prepare_failed").Inc()

		return
	}

	if skip != "" {
		if err := s.store.Complete(ctx, sel.Domain.Domain, sel.FullIndex, false, skip); err != nil {
			logger.Error().Err(err).Msg("scheduler: failed to record skipped job")
		}

		observability.SchedulerDomainsProcessed.WithLabelValues("skipped").Inc()
		logger.Info().Str("reason", skip).Msg("scheduler: skipped domain")

		return
	}

	crawlType := "incremental"
	if cfg.FullIndex {
		crawlType = "full"
	}

	crawlStarted := time.Now()

	result, err := s.crawler.Crawl(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: crawl failed")
		observability.SchedulerDomainsProcessed.WithLabelValues("crawl_failed").Inc()

		return
	}

	observability.CrawlDuration.WithLabelValues(crawlType).Observe(time.Since(crawlStarted).Seconds())
	observability.CrawlPagesFetched.Observe(float64(result.Stats.PagesFetched))

	commitResult, err := s.writer.Commit(ctx, cfg, result)
	if err != nil {
		// The domain stays RUNNING; the stuck-job sweep surfaces it and a
		// later pass re-selects it.
		logger.Error().Err(err).Msg("scheduler: commit failed")
		observability.SchedulerDomainsProcessed.WithLabelValues("commit_failed").Inc()

		return
	}

	observability.DocumentsCommitted.WithLabelValues(sel.Domain.Domain).Add(float64(commitResult.DocumentsWritten))
	observability.SchedulerDomainsProcessed.WithLabelValues("committed").Inc()

	if commitResult.Disabled {
		observability.DomainsDisabled.WithLabelValues("repeated_zero_documents").Inc()

		if sel.Domain.ListingTier == tier3 {
			if err := s.notifier.RepeatedFailureNotice(ctx, sel.Domain.Domain, commitResult.LogMessage); err != nil {
				logger.Error().Err(err).Msg("scheduler: failed to send repeated-failure notice")
			}
		}
	}

	logger.Info().
		Int("documents", commitResult.DocumentsWritten).
		Str("message", commitResult.LogMessage).
		Msg("scheduler: site job complete")
}

// materialise builds the per-job Site Configuration: exclusion filters, the
// inbound-link map, the prior-content cache, and, for incremental jobs,
// the already-indexed set and reduced effective page limit. A non-empty
// skip message means the job should be recorded COMPLETE without crawling.
func (s *Scheduler) materialise(
	ctx context.Context, sel registry.SelectedDomain, common siteconfig.Common,
) (*siteconfig.Config, string, error) {
	domain := sel.Domain.Domain

	filters, err := s.store.FiltersForDomain(ctx, domain)
	if err != nil {
		return nil, "", fmt.Errorf("load filters for %s: %w", domain, err)
	}

	inlinks, err := s.index.Inlinks(ctx, domain)
	if err != nil {
		return nil, "", fmt.Errorf("load inlinks for %s: %w", domain, err)
	}

	prior, err := s.index.PriorContents(ctx, domain)
	if err != nil {
		return nil, "", fmt.Errorf("load prior contents for %s: %w", domain, err)
	}

	cfg := &siteconfig.Config{
		Domain:             sel.Domain,
		FullIndex:          sel.FullIndex,
		Exclusions:         filters,
		IndexedInlinks:     inlinks,
		PriorContents:      prior,
		EffectivePageLimit: sel.Domain.IndexingPageLimit,
		Common:             commonWithoutSelf(common, domain),
	}

	if !sel.FullIndex {
		already, err := s.index.AlreadyIndexedURLs(ctx, domain)
		if err != nil {
			return nil, "", fmt.Errorf("load already-indexed urls for %s: %w", domain, err)
		}

		if len(already) >= sel.Domain.IndexingPageLimit {
			return nil, fmt.Sprintf("WARNING: page limit of %d reached, no new pages indexed.", sel.Domain.IndexingPageLimit), nil
		}

		cfg.AlreadyIndexedURLs = already
		cfg.EffectivePageLimit = sel.Domain.IndexingPageLimit - len(already)
	}

	return cfg, "", nil
}

// commonWithoutSelf narrows the pass-wide domain set to "other" domains for
// one job, so a site's own pages never count as indexed outlinks.
func commonWithoutSelf(common siteconfig.Common, domain string) siteconfig.Common {
	others := make(map[string]struct{}, len(common.OtherDomains))

	for d := range common.OtherDomains {
		if d != domain {
			others[d] = struct{}{}
		}
	}

	common.OtherDomains = others

	return common
}
