package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const robotsTxtPath = "/robots.txt"

// maxRobotsBodyBytes limits how much of a robots.txt response is read.
const maxRobotsBodyBytes = 512 * 1024

// robotsChecker fetches and caches robots.txt per host, obeying it on every
// fetch.
type robotsChecker struct {
	httpClient *http.Client
	userAgent  string
	cacheTTL   time.Duration

	mu    sync.RWMutex
	cache map[string]*robotsCacheEntry
}

type robotsCacheEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool
}

func newRobotsChecker(httpClient *http.Client, userAgent string, cacheTTL time.Duration) *robotsChecker {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}

	return &robotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		cacheTTL:   cacheTTL,
		cache:      make(map[string]*robotsCacheEntry),
	}
}

// Allowed reports whether rawURL may be fetched under the host's robots.txt.
// A fetch or parse failure is treated as allow-all, per standard crawling
// practice.
func (r *robotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false
	}

	entry := r.getOrFetch(ctx, host, parsed.Scheme)
	if entry.allowAll {
		return true
	}

	return entry.data.TestAgent(parsed.Path, r.userAgent)
}

// CrawlDelay returns the host's robots.txt crawl-delay directive, or 0 if
// none is set or the host hasn't been fetched yet.
func (r *robotsChecker) CrawlDelay(host string) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[strings.ToLower(host)]
	if !ok || entry.allowAll || entry.data == nil {
		return 0
	}

	group := entry.data.FindGroup(r.userAgent)
	if group == nil {
		return 0
	}

	return group.CrawlDelay
}

func (r *robotsChecker) getOrFetch(ctx context.Context, host, scheme string) *robotsCacheEntry {
	r.mu.RLock()
	entry, ok := r.cache[host]
	r.mu.RUnlock()

	if ok && time.Since(entry.fetchedAt) <= r.cacheTTL {
		return entry
	}

	return r.fetchAndCache(ctx, host, scheme)
}

func (r *robotsChecker) fetchAndCache(ctx context.Context, host, scheme string) *robotsCacheEntry {
	if scheme == "" {
		scheme = "https"
	}

	body, statusCode, err := r.fetch(ctx, scheme+"://"+host+robotsTxtPath)

	var entry *robotsCacheEntry

	switch {
	case err != nil, statusCode < 200 || statusCode >= 300:
		entry = &robotsCacheEntry{fetchedAt: time.Now(), allowAll: true}
	default:
		data, parseErr := robotstxt.FromBytes(body)
		if parseErr != nil {
			entry = &robotsCacheEntry{fetchedAt: time.Now(), allowAll: true}
		} else {
			entry = &robotsCacheEntry{data: data, fetchedAt: time.Now()}
		}
	}

	r.mu.Lock()
	r.cache[host] = entry
	r.mu.Unlock()

	return entry
}

func (r *robotsChecker) fetch(ctx context.Context, robotsURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create robots request: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read robots.txt: %w", err)
	}

	return body, resp.StatusCode, nil
}
