package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	stuckJobThreshold = 6 * time.Hour
	selectBatchSize   = 8
)

// SelectedDomain is one domain handed to the Site Crawler for a single job,
// with the scheduler's full_index decision already made.
type SelectedDomain struct {
	Domain
	FullIndex bool
}

// selectDueQuery finds domains due for (re)indexing, ordered PENDING first
// then tier descending. RUNNING rows are skipped until they have been
// RUNNING past the stuck-job threshold, and FOR UPDATE SKIP LOCKED keeps a
// concurrent scheduler pass from picking the same rows (single-flight).
const selectDueQuery = `
SELECT id, domain, home_page_url, category, contact_email,
       listing_tier, listing_status, listing_pending_state, listing_end,
       moderator_approved, owner_verified, api_enabled,
       indexing_type, indexing_enabled, indexing_disabled_reason, indexing_disabled_changed,
       indexing_status, indexing_status_changed, last_index_completed, last_full_index_completed,
       full_reindex_frequency, incremental_reindex_frequency, indexing_page_limit, indexing_chunk_limit,
       web_feed_auto_discovered, web_feed_user_entered, sitemap_auto_discovered, date_domain_added
FROM tbl_domains
WHERE indexing_type = $1
  AND indexing_enabled = TRUE
  AND listing_status = $2
  AND (indexing_status <> $4 OR indexing_status_changed < now() - $5::interval)
  AND (
    indexing_status = $3
    OR (last_full_index_completed IS NULL OR now() - last_full_index_completed > full_reindex_frequency)
    OR (last_index_completed IS NULL OR now() - last_index_completed > incremental_reindex_frequency)
  )
ORDER BY (indexing_status = $3) DESC, listing_tier DESC
LIMIT $6
FOR UPDATE SKIP LOCKED`

// SelectAndStart runs the Scheduler's selection query and, within the same
// transaction, transitions every selected row to RUNNING and appends a
// RUNNING log row.
func (s *Store) SelectAndStart(ctx context.Context) ([]SelectedDomain, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin select-and-start tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, selectDueQuery,
		IndexingTypeSpiderDefault, ListingActive, IndexingPending, IndexingRunning, stuckJobThreshold, selectBatchSize)
	if err != nil {
		return nil, fmt.Errorf("select due domains: %w", err)
	}

	now := time.Now().UTC()

	var domains []Domain

	for rows.Next() {
		d, scanErr := scanDomain(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}

		domains = append(domains, d)
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due domains: %w", err)
	}

	selected := make([]SelectedDomain, 0, len(domains))

	for _, d := range domains {
		fullIndex := d.FullIndexDue(now)

		if _, err := tx.Exec(ctx,
			`UPDATE tbl_domains SET indexing_status = $1, indexing_status_changed = now() WHERE domain = $2`,
			IndexingRunning, d.Domain,
		); err != nil {
			return nil, fmt.Errorf("mark %s running: %w", d.Domain, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO tbl_indexing_log (domain, status, occurred_at, message) VALUES ($1, $2, now(), '')`,
			d.Domain, IndexingRunning,
		); err != nil {
			return nil, fmt.Errorf("log %s running: %w", d.Domain, err)
		}

		d.IndexingStatus = IndexingRunning
		selected = append(selected, SelectedDomain{Domain: d, FullIndex: fullIndex})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit select-and-start tx: %w", err)
	}

	return selected, nil
}

func scanDomain(rows pgx.Rows) (Domain, error) {
	var (
		d                                          Domain
		id                                         pgtype.UUID
		listingPendingState                        pgtype.Text
		listingEnd                                 pgtype.Timestamptz
		disabledReason                             pgtype.Text
		disabledChanged                            pgtype.Timestamptz
		lastIndexCompleted, lastFullIndexCompleted pgtype.Timestamptz
		fullFreq, incFreq                          pgtype.Interval
		webFeedAuto, webFeedUser, sitemapAuto      pgtype.Text
	)

	if err := rows.Scan(
		&id, &d.Domain, &d.HomePageURL, &d.Category, &d.ContactEmail,
		&d.ListingTier, &d.ListingStatus, &listingPendingState, &listingEnd,
		&d.ModeratorApproved, &d.OwnerVerified, &d.APIEnabled,
		&d.IndexingType, &d.IndexingEnabled, &disabledReason, &disabledChanged,
		&d.IndexingStatus, &d.IndexingStatusChanged, &lastIndexCompleted, &lastFullIndexCompleted,
		&fullFreq, &incFreq, &d.IndexingPageLimit, &d.IndexingChunkLimit,
		&webFeedAuto, &webFeedUser, &sitemapAuto, &d.DateDomainAdded,
	); err != nil {
		return Domain{}, fmt.Errorf("scan domain row: %w", err)
	}

	d.ID = fromUUID(id)
	d.ListingPendingState = fromText(listingPendingState)
	d.ListingEnd = fromTimestamptz(listingEnd)
	d.IndexingDisabledReason = fromText(disabledReason)
	d.IndexingDisabledChanged = fromTimestamptz(disabledChanged)
	d.LastIndexCompleted = fromTimestamptz(lastIndexCompleted)
	d.LastFullIndexCompleted = fromTimestamptz(lastFullIndexCompleted)
	d.FullReindexFrequency = fromInterval(fullFreq)
	d.IncrementalReindexFrequency = fromInterval(incFreq)
	d.WebFeedAutoDiscovered = fromText(webFeedAuto)
	d.WebFeedUserEntered = fromText(webFeedUser)
	d.SitemapAutoDiscovered = fromText(sitemapAuto)

	return d, nil
}

// StuckDomains returns domains that have been RUNNING for longer than the
// stuck-job threshold.
func (s *Store) StuckDomains(ctx context.Context) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT domain FROM tbl_domains WHERE indexing_status = $1 AND indexing_status_changed < $2`,
		IndexingRunning, time.Now().UTC().Add(-stuckJobThreshold))
	if err != nil {
		return nil, fmt.Errorf("query stuck domains: %w", err)
	}
	defer rows.Close()

	var stuck []string

	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("scan stuck domain: %w", err)
		}

		stuck = append(stuck, domain)
	}

	return stuck, rows.Err()
}

// UpdateDiscoveredFeeds persists the auto-discovered feed and sitemap URLs
// chosen by the Index Writer's feed/sitemap resolution.
func (s *Store) UpdateDiscoveredFeeds(ctx context.Context, domain, feedURL, sitemapURL string) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE tbl_domains SET web_feed_auto_discovered = $1, sitemap_auto_discovered = $2 WHERE domain = $3`,
		feedURL, sitemapURL, domain)
	if err != nil {
		return fmt.Errorf("update discovered feeds for %s: %w", domain, err)
	}

	return nil
}
