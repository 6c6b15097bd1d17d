// Package siteconfig holds the ephemeral, per-job Site Configuration
// materialised by the Scheduler and owned exclusively by the Site Crawler and
// its pipeline for the lifetime of one crawl.
package siteconfig

import (
	"time"

	"github.com/sitevane/indexer/internal/domainid"
	"github.com/sitevane/indexer/internal/registry"
)

// PriorContent is the parent document loaded for change detection and
// embedding reuse.
type PriorContent struct {
	URL                 string
	Content             string
	ContentLastModified time.Time
	Chunks              []PriorChunk
}

// PriorChunk is one previously-indexed content chunk, carried forward
// verbatim when a page's content is unchanged.
type PriorChunk struct {
	ID     string
	Text   string
	Vector []float32
}

// Common is the data loaded once per scheduling pass and shared, read-only,
// across every job of that pass.
type Common struct {
	OtherDomains      map[string]struct{}
	SubdomainsAllowed []string

	// Extractor computes a URL's domain identity (public-suffix extraction
	// overlaid with the subdomain-allowed list), shared read-only across
	// every job in a scheduling pass.
	Extractor *domainid.Extractor
}

// Config is one job's materialised Site Configuration: a registry snapshot
// plus everything the Crawler, Parser, Chunker, and Writer need for the
// lifetime of a single crawl.
type Config struct {
	Domain registry.Domain

	FullIndex bool

	// Exclusions are the domain's indexing filters, loaded once per job.
	Exclusions []registry.Filter

	// IndexedInlinks maps a page URL to the list of inbound URLs discovered
	// by the Link Graph Resolver before the crawl begins.
	IndexedInlinks map[string][]string

	// PriorContents maps a page URL to its previously-indexed parent
	// document, used for content-change detection and embedding reuse.
	PriorContents map[string]PriorContent

	// AlreadyIndexedURLs lists URLs already present in the index for this
	// domain, populated for incremental jobs only.
	AlreadyIndexedURLs map[string]struct{}

	// FeedLinks accumulates entry URLs discovered while parsing the site's
	// web feed during the crawl.
	FeedLinks []string

	// EffectivePageLimit is IndexingPageLimit reduced by the count of
	// already-indexed URLs on an incremental job.
	EffectivePageLimit int

	Common Common
}

// AddFeedLink records a feed-entry URL discovered during the crawl.
func (c *Config) AddFeedLink(url string) {
	c.FeedLinks = append(c.FeedLinks, url)
}

// InFeed reports whether url was discovered via the site's web feed.
func (c *Config) InFeed(url string) bool {
	for _, f := range c.FeedLinks {
		if f == url {
			return true
		}
	}

	return false
}

// AlreadyIndexed reports whether url is already present in the index for
// this domain (relevant to incremental crawls only).
func (c *Config) AlreadyIndexed(url string) bool {
	_, ok := c.AlreadyIndexedURLs[url]
	return ok
}

// IsOtherRegisteredDomain reports whether host belongs to some other
// registered domain, used by the Page Parser to classify outbound links as
// "indexed outlinks". host is resolved to its domain
// identity (public-suffix extraction overlaid with the subdomain-allowed
// list) before the membership check, so a link to a subdomain of a
// registered site is recognised even when the link itself isn't the bare
// registrable domain.
func (c Common) IsOtherRegisteredDomain(host string) bool {
	identity := host

	if c.Extractor != nil {
		if extracted, err := c.Extractor.ExtractHost(host); err == nil {
			identity = extracted
		}
	}

	_, ok := c.OtherDomains[identity]

	return ok
}
