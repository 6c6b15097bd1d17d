package scheduler

import (
	"context"
	"time"

	"github.com/sitevane/indexer/internal/platform/observability"
	"github.com/sitevane/indexer/internal/registry"
)

// runMaintenance performs the cheap per-pass sweeps: surfacing stuck RUNNING
// jobs and expiring listings tier by tier. Failures are logged and never
// block the scheduling pass.
func (s *Scheduler) runMaintenance(ctx context.Context) {
	started := time.Now()
	defer func() {
		observability.SchedulerMaintenanceDuration.Observe(time.Since(started).Seconds())
	}()

	s.sweepStuckJobs(ctx)
	s.expireListings(ctx)
}

// sweepStuckJobs logs every domain left RUNNING past the threshold. The row
// stays RUNNING; the selection query picks it up again once eligible.
func (s *Scheduler) sweepStuckJobs(ctx context.Context) {
	stuck, err := s.store.StuckDomains(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("maintenance: stuck-job sweep failed")
		return
	}

	for _, domain := range stuck {
		s.logger.Warn().Str("domain", domain).Msg("maintenance: domain stuck in RUNNING")
	}
}

// expireListings applies each tier's expiry rule to ACTIVE listings past
// their listing_end: tier 1 goes back to moderator review and loses its
// index documents; tiers 2 and 3 are demoted one tier with that tier's
// indexing defaults, tier 3 with an admin notification.
func (s *Scheduler) expireListings(ctx context.Context) {
	tiers, err := s.store.Tiers(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("maintenance: failed to load tiers")
		return
	}

	for tier := 1; tier <= tier3; tier++ {
		expired, err := s.store.ExpiredListingsForTier(ctx, tier)
		if err != nil {
			s.logger.Error().Err(err).Int("tier", tier).Msg("maintenance: failed to select expired listings")
			continue
		}

		for _, e := range expired {
			s.expireOne(ctx, e, tiers)
		}
	}
}

func (s *Scheduler) expireOne(ctx context.Context, e registry.ExpiredListing, tiers map[int]registry.Tier) {
	logger := s.logger.With().Str("domain", e.Domain).Int("tier", e.Tier).Logger()

	if e.Tier == 1 {
		if err := s.store.ExpireTier1ToModeratorReview(ctx, e.Domain); err != nil {
			logger.Error().Err(err).Msg("maintenance: failed to expire tier-1 listing")
			return
		}

		if err := s.cleaner.DeleteDomain(ctx, e.Domain); err != nil {
			logger.Error().Err(err).Msg("maintenance: failed to delete expired domain's documents")
			return
		}

		observability.DocumentsDeleted.WithLabelValues("tier1_expiry").Inc()
		logger.Info().Msg("maintenance: tier-1 listing expired to moderator review")

		return
	}

	lower, ok := tiers[e.Tier-1]
	if !ok {
		logger.Error().Msg("maintenance: no tier defaults for demotion target")
		return
	}

	if err := s.store.DemoteToLowerTier(ctx, e.Domain, lower); err != nil {
		logger.Error().Err(err).Msg("maintenance: failed to demote expired listing")
		return
	}

	if e.Tier == tier3 {
		if err := s.notifier.TierExpiryNotice(ctx, e.Domain); err != nil {
			logger.Error().Err(err).Msg("maintenance: failed to send tier-expiry notice")
		}
	}

	logger.Info().Int("new_tier", lower.Tier).Msg("maintenance: listing demoted after expiry")
}
