// Package registry is the SQL collaborator for the domain registry: it reads
// and writes tbl_domains, tbl_indexing_filters, tbl_indexing_log, tbl_tiers,
// and tbl_settings.
package registry

import "time"

// Listing status values.
const (
	ListingActive   = "ACTIVE"
	ListingPending  = "PENDING"
	ListingDisabled = "DISABLED"
	ListingExpired  = "EXPIRED"
)

// Listing pending sub-states (glossary: "optional pending sub-state for
// approval workflow").
const (
	PendingStateModeratorReview = "MODERATOR_REVIEW"
)

// Indexing status values.
const (
	IndexingPending  = "PENDING"
	IndexingRunning  = "RUNNING"
	IndexingComplete = "COMPLETE"
)

// Indexing filter constants.
const (
	FilterActionExclude = "exclude"
	FilterTypePath      = "path"
	FilterTypeType      = "type"
)

// IndexingType is the only indexing_type value the Scheduler selects on.
const IndexingTypeSpiderDefault = "spider/default"

// Domain is one registry row: a site under management.
type Domain struct {
	ID     string
	Domain string

	HomePageURL  string
	Category     string
	ContactEmail string

	ListingTier         int
	ListingStatus       string
	ListingPendingState string
	ListingEnd          time.Time
	ModeratorApproved   bool
	OwnerVerified       bool
	APIEnabled          bool

	IndexingType            string
	IndexingEnabled         bool
	IndexingDisabledReason  string
	IndexingDisabledChanged time.Time
	IndexingStatus          string
	IndexingStatusChanged   time.Time
	LastIndexCompleted      time.Time
	LastFullIndexCompleted  time.Time

	FullReindexFrequency        time.Duration
	IncrementalReindexFrequency time.Duration
	IndexingPageLimit           int
	IndexingChunkLimit          int

	WebFeedAutoDiscovered string
	WebFeedUserEntered    string
	SitemapAutoDiscovered string

	DateDomainAdded time.Time
}

// FullIndexDue reports whether this selected domain should run a full
// (rather than incremental) reindex, computed by the Scheduler's selection
// query.
func (d Domain) FullIndexDue(now time.Time) bool {
	if d.IndexingStatus == IndexingPending {
		return true
	}

	if d.LastFullIndexCompleted.IsZero() {
		return true
	}

	return now.Sub(d.LastFullIndexCompleted) > d.FullReindexFrequency
}

// IncrementalIndexDue reports whether this domain is due for at least an
// incremental reindex.
func (d Domain) IncrementalIndexDue(now time.Time) bool {
	if d.LastIndexCompleted.IsZero() {
		return true
	}

	return now.Sub(d.LastIndexCompleted) > d.IncrementalReindexFrequency
}

// Filter is one row of tbl_indexing_filters.
type Filter struct {
	ID     string
	Domain string
	Action string
	Type   string
	Value  string
}

// LogEntry is one append-only row of tbl_indexing_log.
type LogEntry struct {
	ID         string
	Domain     string
	Status     string
	OccurredAt time.Time
	Message    string
}

// Tier holds the per-tier defaults used for listing expiry and newly
// registered domains.
type Tier struct {
	Tier                        int
	ListingDuration             time.Duration
	FullReindexFrequency        time.Duration
	IncrementalReindexFrequency time.Duration
	PageLimit                   int
	ChunkLimit                  int
}
