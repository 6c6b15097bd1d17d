// Package crawler implements the per-site crawl: robots-obedient,
// politeness-bounded fetching of a registered domain's pages, link and feed
// discovery, and page-type/path exclusion, handing each accepted page
// through the Page Parser and Content Chunker before it is buffered for the
// Index Writer.
package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sitevane/indexer/internal/chunker"
	coreerrors "github.com/sitevane/indexer/internal/core/errors"
	"github.com/sitevane/indexer/internal/core/solr"
	"github.com/sitevane/indexer/internal/domainid"
	"github.com/sitevane/indexer/internal/parser"
	"github.com/sitevane/indexer/internal/siteconfig"
)

const headerUserAgent = "User-Agent"

// Stats reports why a crawl stopped and what it saw along the way, used by
// the Index Writer's commit decision and log message.
type Stats struct {
	PagesFetched      int
	RobotsForbidden   bool
	MaxRetriesReached bool
	StopReason        string
}

// Result is everything the crawl produced: accepted parent documents (with
// their content chunks already attached) and the crawl's outcome stats.
type Result struct {
	Documents []solr.Document
	Stats     Stats
}

// Crawler runs one site's crawl.
type Crawler struct {
	cfg        Config
	httpClient *http.Client
	robots     *robotsChecker
	passLimit  *rate.Limiter // overall per-pass fetch-rate ceiling
	chunker    *chunker.Chunker
	logger     *zerolog.Logger
}

// New builds a Crawler. passLimit bounds the total fetch rate across every
// concurrently running site crawl in one scheduler pass.
func New(cfg Config, passLimit *rate.Limiter, ck *chunker.Chunker, logger *zerolog.Logger) *Crawler {
	httpClient := &http.Client{
		Timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
	}

	return &Crawler{
		cfg:        cfg,
		httpClient: httpClient,
		robots:     newRobotsChecker(httpClient, cfg.UserAgent, cfg.RobotsCacheTTL),
		passLimit:  passLimit,
		chunker:    ck,
		logger:     logger,
	}
}

// crawlState is the mutable, per-job bookkeeping shared across worker
// goroutines.
type crawlState struct {
	mu        sync.Mutex
	visited   map[string]struct{}
	documents []solr.Document
	pageCount int
	pageLimit int
	stopped   bool
	stats     Stats
}

func (s *crawlState) tryVisit(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visited[url]; ok {
		return false
	}

	s.visited[url] = struct{}{}

	return true
}

func (s *crawlState) atLimit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pageCount >= s.pageLimit
}

// accept appends doc and reports whether it was counted; it refuses once
// pageLimit is already reached so concurrent fetches never overshoot the
// final document count.
func (s *crawlState) accept(doc solr.Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pageCount >= s.pageLimit {
		return false
	}

	s.documents = append(s.documents, doc)
	s.pageCount++

	return true
}

// Crawl runs one site crawl and returns every accepted parent document
// (chunked) plus the crawl's outcome stats.
func (c *Crawler) Crawl(ctx context.Context, cfg *siteconfig.Config) (Result, error) {
	wallCtx, cancel := context.WithTimeout(ctx, c.cfg.WallClockCap)
	defer cancel()

	p := parser.New(cfg)
	excl := compileExclusions(cfg.Exclusions)
	limiter := newHostLimiter(c.cfg.RequestDelay)

	state := &crawlState{
		visited:   make(map[string]struct{}),
		pageLimit: cfg.EffectivePageLimit,
	}

	if state.pageLimit <= 0 {
		return Result{Stats: state.stats}, nil
	}

	// Home page: always the job's first request, regardless of redirects.
	homeLinks := c.fetchStartURL(wallCtx, cfg, p, excl, limiter, state, cfg.Domain.HomePageURL, true)

	feedURL := cfg.Domain.WebFeedUserEntered
	if feedURL == "" {
		feedURL = cfg.Domain.WebFeedAutoDiscovered
	}

	var feedLinks []string

	if feedURL != "" {
		feedLinks = c.fetchStartURL(wallCtx, cfg, p, excl, limiter, state, feedURL, false)
	}

	for _, link := range dedupeFeedEntries(feedLinks, cfg) {
		cfg.AddFeedLink(link)
	}

	sem := make(chan struct{}, c.cfg.MaxConcurrency)

	var wg sync.WaitGroup

	var enqueue func(link string, followLinks bool)

	enqueue = func(link string, followLinks bool) {
		if state.atLimit() || wallCtx.Err() != nil {
			return
		}

		if !sameDomainIdentity(link, cfg.Domain.Domain, cfg.Common.Extractor) {
			return
		}

		if cfg.FullIndex {
			if !state.tryVisit(link) {
				return
			}
		} else {
			if cfg.AlreadyIndexed(link) || !state.tryVisit(link) {
				return
			}
		}

		if excluded(link, excl) {
			return
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			links := c.fetchOne(wallCtx, cfg, p, limiter, state, link, false)

			if followLinks {
				for _, l := range links {
					enqueue(l, cfg.FullIndex)
				}
			}
		}()
	}

	for _, link := range homeLinks {
		enqueue(link, cfg.FullIndex)
	}

	for _, link := range cfg.FeedLinks {
		enqueue(link, false)
	}

	wg.Wait()

	state.mu.Lock()
	defer state.mu.Unlock()

	if wallCtx.Err() != nil {
		state.stats.StopReason = "wall-clock-cap"
	} else if state.pageCount >= state.pageLimit {
		state.stats.StopReason = "page-limit"
	} else {
		state.stats.StopReason = "no-further-links"
	}

	state.stats.PagesFetched = state.pageCount

	documents := c.attachChunks(ctx, cfg, state.documents)

	return Result{Documents: documents, Stats: state.stats}, nil
}

// fetchStartURL fetches one of the job's start-set URLs (home page or
// known feed) synchronously before any concurrent work begins, and returns
// the links fetchOne discovered on it for the caller to enqueue.
func (c *Crawler) fetchStartURL(
	ctx context.Context, cfg *siteconfig.Config, p *parser.Parser, excl compiledExclusions,
	limiter *hostLimiter, state *crawlState, startURL string, isHome bool,
) []string {
	if startURL == "" || excluded(startURL, excl) {
		return nil
	}

	if !state.tryVisit(startURL) {
		return nil
	}

	return c.fetchOne(ctx, cfg, p, limiter, state, startURL, isHome)
}

// fetchOne fetches, parses, and (if accepted) records one URL, returning
// the links discovered in its body for the caller to decide whether to
// follow: the same-domain links of a page, or every entry link of a web feed.
func (c *Crawler) fetchOne(
	ctx context.Context, cfg *siteconfig.Config, p *parser.Parser,
	limiter *hostLimiter, state *crawlState, rawURL string, isHome bool,
) []string {
	if ctx.Err() != nil {
		return nil
	}

	if c.passLimit != nil {
		if err := c.passLimit.Wait(ctx); err != nil {
			return nil
		}
	}

	if !c.robots.Allowed(ctx, rawURL) {
		state.mu.Lock()
		state.stats.RobotsForbidden = true
		state.mu.Unlock()

		return nil
	}

	if delay := c.robots.CrawlDelay(hostOf(rawURL)); delay > 0 {
		limiter.SetCrawlDelay(delay)
	}

	if err := limiter.Wait(ctx); err != nil {
		return nil
	}

	body, finalURL, contentType, lastModified, retriesExhausted, err := c.fetchWithRetry(ctx, rawURL)
	if retriesExhausted {
		state.mu.Lock()
		state.stats.MaxRetriesReached = true
		state.mu.Unlock()
	}

	if err != nil {
		c.logger.Debug().Err(err).Str("url", rawURL).Msg("crawl: fetch failed")
		return nil
	}

	resp := parser.Response{
		URL:            finalURL,
		PreRedirectURL: rawURL,
		IsHome:         isHome,
		ContentType:    contentType,
		LastModified:   lastModified,
		Body:           body,
	}

	// Prior contents are keyed by the post-redirect URL, matching how the
	// link-graph resolver loads them and how attachChunks looks them up.
	result := p.Parse(resp, cfg.Domain.Domain, cfg.IndexedInlinks, cfg.PriorContents[finalURL])
	if result.Dropped {
		return nil
	}

	result.Document.InWebFeed = cfg.InFeed(result.Document.URL)
	if !state.accept(result.Document) {
		return nil
	}

	switch {
	case isHTMLContentType(contentType):
		return sameDomainLinks(body, finalURL, cfg.Domain.Domain)
	case isFeedContentType(contentType, rawURL):
		return parseFeedEntryLinks(body)
	default:
		return nil
	}
}

func isFeedContentType(ct, rawURL string) bool {
	ct = strings.ToLower(ct)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "xml") {
		return true
	}

	lowerURL := strings.ToLower(rawURL)

	return strings.HasSuffix(lowerURL, ".xml") || strings.Contains(lowerURL, "/feed") || strings.Contains(lowerURL, "/rss")
}

// fetchWithRetry performs one GET, retrying transient failures (timeout,
// 5xx) up to cfg.MaxRetries times.
func (c *Crawler) fetchWithRetry(ctx context.Context, rawURL string) (
	body []byte, finalURL, contentType string, lastModified time.Time, retriesExhausted bool, err error,
) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, "", "", time.Time{}, false, fmt.Errorf("retry interrupted: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		body, finalURL, contentType, lastModified, lastErr = c.fetch(ctx, rawURL)
		if lastErr == nil {
			return body, finalURL, contentType, lastModified, false, nil
		}

		if !isRetryable(lastErr) {
			return nil, "", "", time.Time{}, false, lastErr
		}
	}

	return nil, "", "", time.Time{}, true, lastErr
}

func (c *Crawler) fetch(ctx context.Context, rawURL string) (body []byte, finalURL, contentType string, lastModified time.Time, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", "", time.Time{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(headerUserAgent, c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", "", time.Time{}, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, "", "", time.Time{}, fmt.Errorf("fetch %s: http %d", rawURL, resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", "", time.Time{}, fmt.Errorf("fetch %s: http %d: %w", rawURL, resp.StatusCode, coreerrors.ErrUnsupportedContentType)
	}

	limited := io.LimitReader(resp.Body, c.cfg.MaxResponseSize)

	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, "", "", time.Time{}, fmt.Errorf("read body: %w", err)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	var modified time.Time

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, parseErr := http.ParseTime(lm); parseErr == nil {
			modified = t.UTC()
		}
	}

	return data, final, resp.Header.Get("Content-Type"), modified, nil
}

func isRetryable(err error) bool {
	return err != nil && !strings.Contains(err.Error(), "http 4")
}

// attachChunks runs the Content Chunker over every accepted parent
// document with non-empty content.
func (c *Crawler) attachChunks(ctx context.Context, cfg *siteconfig.Config, docs []solr.Document) []solr.Document {
	for i := range docs {
		doc := &docs[i]
		if doc.Relationship != solr.RelationshipParent || doc.Content == "" {
			continue
		}

		prior := cfg.PriorContents[doc.URL]
		unchanged := chunker.ContentUnchanged(prior.Content, doc.Content)

		chunks := c.chunker.Chunk(ctx, doc.ID, doc.Content, cfg.Domain.IndexingChunkLimit, unchanged, prior.Chunks)
		for j := range chunks {
			chunks[j].URL = doc.URL
			chunks[j].Domain = doc.Domain
		}

		doc.ContentChunks = chunks
	}

	return docs
}

// dedupeFeedEntries filters feed entries against the already-indexed set on
// incremental jobs.
func dedupeFeedEntries(entries []string, cfg *siteconfig.Config) []string {
	if cfg.FullIndex {
		return entries
	}

	var filtered []string

	for _, e := range entries {
		if !cfg.AlreadyIndexed(e) {
			filtered = append(filtered, e)
		}
	}

	return filtered
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}

	return strings.Contains(ct, "html")
}

// sameDomainLinks extracts every same-domain `<a href>` from an HTML body,
// resolved against baseURL, for the crawl queue. Distinct from the Page
// Parser's IndexedOutlinks, which only collects cross-domain links to other
// registered sites.
func sameDomainLinks(body []byte, baseURL, domain string) []string {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	base, err := neturl.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []string

	seen := make(map[string]struct{})

	dom.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}

		ref, err := neturl.Parse(href)
		if err != nil {
			return
		}

		resolved := base.ResolveReference(ref).String()

		if !sameDomain(resolved, domain) {
			return
		}

		if _, dup := seen[resolved]; dup {
			return
		}

		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})

	return links
}

func sameDomain(rawURL, domain string) bool {
	host := hostOf(rawURL)
	host = strings.TrimPrefix(host, "www.")
	domain = strings.TrimPrefix(strings.ToLower(domain), "www.")

	return host == domain || strings.HasSuffix(host, "."+domain)
}

// sameDomainIdentity is sameDomain's extractor-aware counterpart: it
// resolves rawURL's host to its domain identity before comparing, so a link
// to an unlisted subdomain of the site's own registrable domain is still
// recognised.
func sameDomainIdentity(rawURL, domain string, extractor *domainid.Extractor) bool {
	if extractor == nil {
		return sameDomain(rawURL, domain)
	}

	identity, err := extractor.ExtractHost(hostOf(rawURL))
	if err != nil {
		return sameDomain(rawURL, domain)
	}

	return identity == domain
}

func hostOf(rawURL string) string {
	const schemeSep = "://"

	idx := strings.Index(rawURL, schemeSep)
	if idx < 0 {
		return ""
	}

	rest := rawURL[idx+len(schemeSep):]
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		rest = rest[:end]
	}

	return strings.ToLower(rest)
}

// parseFeedEntryLinks parses body as an RSS/Atom feed and returns its entry
// links. Used by fetchOne for any response whose content type is a feed
// type.
func parseFeedEntryLinks(body []byte) []string {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil || feed == nil {
		return nil
	}

	links := make([]string, 0, len(feed.Items))

	for _, item := range feed.Items {
		if item.Link != "" {
			links = append(links, item.Link)
		}
	}

	return links
}
