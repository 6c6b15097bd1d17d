package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

// Tiers loads the tbl_tiers defaults table, keyed by tier number, used by
// Listing Expiry to reset a demoted domain's indexing defaults.
func (s *Store) Tiers(ctx context.Context) (map[int]Tier, error) {
	rows, err := s.db.Pool.Query(ctx, `
SELECT tier, listing_duration, full_reindex_frequency, incremental_reindex_frequency, page_limit, chunk_limit
FROM tbl_tiers`)
	if err != nil {
		return nil, fmt.Errorf("load tiers: %w", err)
	}
	defer rows.Close()

	tiers := make(map[int]Tier)

	for rows.Next() {
		var (
			t                        Tier
			duration, full, incField pgtype.Interval
		)

		if err := rows.Scan(&t.Tier, &duration, &full, &incField, &t.PageLimit, &t.ChunkLimit); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}

		t.ListingDuration = fromInterval(duration)
		t.FullReindexFrequency = fromInterval(full)
		t.IncrementalReindexFrequency = fromInterval(incField)
		tiers[t.Tier] = t
	}

	return tiers, rows.Err()
}
