// Package writer implements the Index Writer: intra-crawl deduplication,
// feed/sitemap discovery, home-page field resolution, and the full-reindex
// vs incremental commit rules that land a crawl's documents in the search
// index and advance the registry's completion state.
package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sitevane/indexer/internal/core/solr"
	"github.com/sitevane/indexer/internal/crawler"
	"github.com/sitevane/indexer/internal/registry"
	"github.com/sitevane/indexer/internal/siteconfig"
)

const (
	warningPrefix = "WARNING"
	successPrefix = "SUCCESS"

	// zeroDocWarning is the un-parameterised prefix compared against the
	// previous COMPLETE log row to detect two zero-document full reindexes
	// in a row.
	zeroDocWarning = warningPrefix + ": 0 documents found."

	disabledReason = "Indexing failed twice in a row"
)

// feedPreferences is the ordered list of path suffixes walked against the
// crawl's feed candidates; the first match wins.
var feedPreferences = []string{
	"/posts/index.xml",
	"/feed/",
	"/feed.xml",
	"/atom.xml",
	"/rss.xml",
	"/feed",
	"/rss",
	"/index.xml",
}

// Result summarizes one commit for the caller's own logging/metrics.
type Result struct {
	DocumentsWritten int
	FeedURL          string
	SitemapURL       string
	LogMessage       string
	Disabled         bool
}

// Writer commits crawl results to the search index and advances the
// registry.
type Writer struct {
	solr     *solr.Client
	registry *registry.Store
	logger   *zerolog.Logger
}

// New builds a Writer.
func New(client *solr.Client, store *registry.Store, logger *zerolog.Logger) *Writer {
	return &Writer{solr: client, registry: store, logger: logger}
}

// DeleteDomain removes every document for domain from the search index,
// used by tier-1 listing expiry.
func (w *Writer) DeleteDomain(ctx context.Context, domain string) error {
	query := fmt.Sprintf("domain:%s", solr.EscapeQueryTerm(domain))
	if err := w.solr.DeleteByQuery(ctx, query); err != nil {
		return fmt.Errorf("delete documents for %s: %w", domain, err)
	}

	return nil
}

// Commit dedups a crawl's documents, resolves its feed/sitemap candidates
// and home-page fields, and applies the commit rule appropriate to the job
// type: delete-then-add for a full reindex, add-only for an incremental one.
// A full reindex producing zero documents goes through the
// two-consecutive-failure rule instead of writing anything.
func (w *Writer) Commit(ctx context.Context, cfg *siteconfig.Config, result crawler.Result) (Result, error) {
	domain := cfg.Domain.Domain

	docs := dedupe(result.Documents)

	if cfg.FullIndex && len(docs) == 0 {
		return w.commitZeroDocumentFullReindex(ctx, domain, result.Stats)
	}

	feedURL, sitemapURL := resolveFeedAndSitemap(docs)

	if cfg.FullIndex {
		resolveHomeFields(docs, cfg, feedURL)

		query := fmt.Sprintf("domain:%s", solr.EscapeQueryTerm(domain))
		if err := w.solr.DeleteByQuery(ctx, query); err != nil {
			return Result{}, fmt.Errorf("delete prior documents for %s: %w", domain, err)
		}
	}

	if err := w.solr.IndexDocumentsWithRetry(ctx, solr.DefaultRetryConfig(), docs...); err != nil {
		return Result{}, fmt.Errorf("index documents for %s: %w", domain, err)
	}

	if feedURL != "" || sitemapURL != "" {
		if err := w.registry.UpdateDiscoveredFeeds(ctx, domain, feedURL, sitemapURL); err != nil {
			return Result{}, fmt.Errorf("persist discovered feeds for %s: %w", domain, err)
		}
	}

	message := successMessage(len(docs), result.Stats)

	if err := w.registry.Complete(ctx, domain, cfg.FullIndex, true, message); err != nil {
		return Result{}, fmt.Errorf("complete %s: %w", domain, err)
	}

	return Result{
		DocumentsWritten: len(docs),
		FeedURL:          feedURL,
		SitemapURL:       sitemapURL,
		LogMessage:       message,
	}, nil
}

// commitZeroDocumentFullReindex implements the two-consecutive-failure
// rule: the first zero-document full reindex records a WARNING and leaves
// the prior index intact; a second one in a row deletes the domain's
// documents and disables indexing. Detection compares the new WARNING's
// un-parameterised prefix against the previous COMPLETE log row, so no
// counter column is needed. The caller sends the tier-3 notification, since
// only it holds the notifier.
func (w *Writer) commitZeroDocumentFullReindex(ctx context.Context, domain string, stats crawler.Stats) (Result, error) {
	lastMessage, err := w.registry.LastLogMessage(ctx, domain)
	if err != nil {
		return Result{}, fmt.Errorf("load last log message for %s: %w", domain, err)
	}

	message := zeroDocWarning + " " + zeroDocReason(stats)
	disabled := false

	if strings.HasPrefix(lastMessage, zeroDocWarning) {
		disabled = true
		message += " Indexing disabled."

		query := fmt.Sprintf("domain:%s", solr.EscapeQueryTerm(domain))
		if err := w.solr.DeleteByQuery(ctx, query); err != nil {
			return Result{}, fmt.Errorf("delete documents for disabled %s: %w", domain, err)
		}

		if err := w.registry.Disable(ctx, domain, disabledReason); err != nil {
			return Result{}, fmt.Errorf("disable %s: %w", domain, err)
		}

		w.logger.Warn().Str("domain", domain).Msg("writer: disabled domain after two consecutive zero-document reindexes")
	}

	if err := w.registry.Complete(ctx, domain, true, false, message); err != nil {
		return Result{}, fmt.Errorf("complete (zero-doc) %s: %w", domain, err)
	}

	return Result{LogMessage: message, Disabled: disabled}, nil
}

// zeroDocReason renders the crawl stats into the log's reason fragment.
func zeroDocReason(stats crawler.Stats) string {
	switch {
	case stats.RobotsForbidden:
		return "Likely robots.txt forbidden."
	case stats.MaxRetriesReached:
		return "Likely site timeout."
	default:
		return fmt.Sprintf("robotstxt/forbidden: %t, retry/max_reached: %t.", stats.RobotsForbidden, stats.MaxRetriesReached)
	}
}

func successMessage(count int, stats crawler.Stats) string {
	msg := fmt.Sprintf("%s: %d documents found.", successPrefix, count)

	var notes []string

	if stats.RobotsForbidden {
		notes = append(notes, "robots.txt restricted some paths")
	}

	if stats.MaxRetriesReached {
		notes = append(notes, "some fetches exhausted retries")
	}

	if stats.StopReason == "page-limit" {
		notes = append(notes, "stopped at page limit")
	} else if stats.StopReason == "wall-clock-cap" {
		notes = append(notes, "stopped at wall-clock cap")
	}

	if len(notes) > 0 {
		msg += " (" + strings.Join(notes, "; ") + ")"
	}

	return msg
}

// resolveHomeFields fills the home-page-only fields on the single is_home
// document before a full commit: API enabled, date-domain-added, and the
// canonical web feed (user-entered wins over discovered).
func resolveHomeFields(docs []solr.Document, cfg *siteconfig.Config, discoveredFeed string) {
	webFeed := cfg.Domain.WebFeedUserEntered
	if webFeed == "" {
		webFeed = discoveredFeed
	}

	if webFeed == "" {
		webFeed = cfg.Domain.WebFeedAutoDiscovered
	}

	for i := range docs {
		if !docs[i].IsHome {
			continue
		}

		docs[i].APIEnabled = cfg.Domain.APIEnabled
		docs[i].DateDomainAdded = cfg.Domain.DateDomainAdded
		docs[i].WebFeed = webFeed

		return
	}
}

// dedupeKey identifies duplicate parent documents discovered more than once
// in the same crawl: the same URL (modulo a single leading "www." label) and
// the same title.
func dedupeKey(doc solr.Document) string {
	return solr.StripWWWHost(solr.CanonicalizeURL(doc.URL)) + "|" + doc.Title
}

// dedupe drops later occurrences of any parent document already seen under
// the same dedupeKey, keeping each document's content chunks attached.
func dedupe(docs []solr.Document) []solr.Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]solr.Document, 0, len(docs))

	for _, doc := range docs {
		key := dedupeKey(doc)
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, doc)
	}

	return out
}

// resolveFeedAndSitemap derives the crawl's canonical feed and sitemap. XML
// responses whose URL ends in sitemap.xml are sitemap candidates; any other
// XML response (including pages the parser recognised as a web feed) is a
// feed candidate. The feed is chosen by walking the ordered preference list
// against the candidates, falling back to the first candidate.
func resolveFeedAndSitemap(docs []solr.Document) (feedURL, sitemapURL string) {
	var feedCandidates []string

	for _, doc := range docs {
		isXML := strings.HasSuffix(strings.ToLower(doc.ContentType), "xml") || doc.PageType == "feed"
		if !isXML {
			continue
		}

		if strings.HasSuffix(strings.ToLower(doc.URL), "sitemap.xml") {
			if sitemapURL == "" {
				sitemapURL = doc.URL
			}

			continue
		}

		feedCandidates = append(feedCandidates, doc.URL)
	}

	return selectFeed(feedCandidates), sitemapURL
}

// selectFeed picks the first candidate matching the earliest preference;
// given the same candidates it always returns the same URL.
func selectFeed(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	for _, pref := range feedPreferences {
		for _, c := range candidates {
			lower := strings.ToLower(c)
			if strings.HasSuffix(lower, pref) || strings.HasSuffix(lower+"/", pref) {
				return c
			}
		}
	}

	return candidates[0]
}
