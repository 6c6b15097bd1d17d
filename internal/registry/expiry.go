package registry

import (
	"context"
	"fmt"
	"time"
)

// ExpiredListing is one ACTIVE listing past its listing_end, selected by
// Listing Expiry.
type ExpiredListing struct {
	Domain string
	Tier   int
}

// ExpiredListingsForTier selects ACTIVE listings of the given tier with
// listing_end in the past.
func (s *Store) ExpiredListingsForTier(ctx context.Context, tier int) ([]ExpiredListing, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT domain, listing_tier FROM tbl_domains
		   WHERE listing_status = $1 AND listing_tier = $2 AND listing_end IS NOT NULL AND listing_end < now()`,
		ListingActive, tier)
	if err != nil {
		return nil, fmt.Errorf("query expired tier %d listings: %w", tier, err)
	}
	defer rows.Close()

	var expired []ExpiredListing

	for rows.Next() {
		var e ExpiredListing
		if err := rows.Scan(&e.Domain, &e.Tier); err != nil {
			return nil, fmt.Errorf("scan expired listing: %w", err)
		}

		expired = append(expired, e)
	}

	return expired, rows.Err()
}

// ExpireTier1ToModeratorReview implements tier-1 rule: move
// the listing to PENDING/MODERATOR_REVIEW. The caller (internal/scheduler's
// maintenance sweep) is responsible for deleting the domain's index
// documents in the same logical operation.
func (s *Store) ExpireTier1ToModeratorReview(ctx context.Context, domain string) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE tbl_domains SET listing_status = $1, listing_pending_state = $2 WHERE domain = $3`,
		ListingPending, PendingStateModeratorReview, domain)
	if err != nil {
		return fmt.Errorf("expire tier-1 listing %s: %w", domain, err)
	}

	return nil
}

// DemoteToLowerTier handles tier-2/3 expiry by overwriting the domain's single
// registry row in place: listing_status stays ACTIVE, and the tier,
// listing_end and indexing defaults become the lower tier's. No EXPIRED
// record of the previous tier's listing is kept.
func (s *Store) DemoteToLowerTier(ctx context.Context, domain string, lower Tier) error {
	_, err := s.db.Pool.Exec(ctx, `
UPDATE tbl_domains
SET listing_status = $1,
    listing_tier = $2,
    listing_end = $3,
    full_reindex_frequency = $4,
    incremental_reindex_frequency = $5,
    indexing_page_limit = $6,
    indexing_chunk_limit = $7
WHERE domain = $8`,
		ListingActive, lower.Tier, time.Now().UTC().Add(lower.ListingDuration),
		toInterval(lower.FullReindexFrequency), toInterval(lower.IncrementalReindexFrequency),
		lower.PageLimit, lower.ChunkLimit, domain)
	if err != nil {
		return fmt.Errorf("demote %s to tier %d: %w", domain, lower.Tier, err)
	}

	return nil
}
