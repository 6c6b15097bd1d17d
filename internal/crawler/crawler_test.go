package crawler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sitevane/indexer/internal/chunker"
	"github.com/sitevane/indexer/internal/core/embeddings"
	"github.com/sitevane/indexer/internal/registry"
	"github.com/sitevane/indexer/internal/siteconfig"
)

func newTestCrawler(t *testing.T) *Crawler {
	t.Helper()

	logger := zerolog.Nop()

	reg := embeddings.NewRegistry(8, &logger)
	reg.Register(embeddings.NewMockProvider(), embeddings.DefaultCircuitBreakerConfig())

	cfg := Config{
		UserAgent:       "test-agent",
		MaxConcurrency:  4,
		RequestDelay:    time.Millisecond,
		WallClockCap:    5 * time.Second,
		MaxResponseSize: 1 << 20,
		ConnectTimeout:  2 * time.Second,
		ReadTimeout:     2 * time.Second,
		MaxRetries:      1,
		RobotsCacheTTL:  time.Minute,
	}

	return New(cfg, rate.NewLimiter(rate.Inf, 1), chunker.New(reg), &logger)
}

func newTestSite(t *testing.T, handler http.HandlerFunc) (*httptest.Server, func(host string) registry.Domain) {
	t.Helper()

	srv := httptest.NewServer(handler)

	domainFor := func(host string) registry.Domain {
		return registry.Domain{
			Domain:             host,
			HomePageURL:        srv.URL + "/",
			IndexingChunkLimit: 10,
		}
	}

	return srv, domainFor
}

func TestCrawler_FullIndexFollowsLinks(t *testing.T) {
	pages := map[string]string{
		"/": `<html><head><title>Home</title></head><body><main>
			<p>Welcome to the home page with enough content to be indexed properly here.</p>
			<a href="/about">About</a>
		</main></body></html>`,
		"/about": `<html><head><title>About</title></head><body><main>
			<p>About page content describing the site owner and its purpose in detail.</p>
		</main></body></html>`,
		"/robots.txt": "User-agent: *\nAllow: /\n",
	}

	srv, domainFor := newTestSite(t, func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if strings.HasSuffix(r.URL.Path, ".txt") {
			w.Header().Set("Content-Type", "text/plain")
		} else {
			w.Header().Set("Content-Type", "text/html")
		}

		_, _ = w.Write([]byte(body))
	})
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")

	cfg := &siteconfig.Config{
		Domain:             domainFor(host),
		FullIndex:          true,
		EffectivePageLimit: 10,
		PriorContents:      map[string]siteconfig.PriorContent{},
		AlreadyIndexedURLs: map[string]struct{}{},
	}

	c := newTestCrawler(t)

	result, err := c.Crawl(t.Context(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)
	require.False(t, result.Stats.RobotsForbidden)

	var urls []string
	for _, d := range result.Documents {
		urls = append(urls, d.URL)
	}

	require.Contains(t, urls, srv.URL+"/")
	require.Contains(t, urls, srv.URL+"/about")
}

func TestCrawler_RespectsRobotsDisallow(t *testing.T) {
	pages := map[string]string{
		"/":           `<html><head><title>Home</title></head><body><main><p>content</p></main></body></html>`,
		"/robots.txt": "User-agent: *\nDisallow: /\n",
	}

	srv, domainFor := newTestSite(t, func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if strings.HasSuffix(r.URL.Path, ".txt") {
			w.Header().Set("Content-Type", "text/plain")
		} else {
			w.Header().Set("Content-Type", "text/html")
		}

		_, _ = w.Write([]byte(body))
	})
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")

	cfg := &siteconfig.Config{
		Domain:             domainFor(host),
		FullIndex:          true,
		EffectivePageLimit: 10,
		PriorContents:      map[string]siteconfig.PriorContent{},
		AlreadyIndexedURLs: map[string]struct{}{},
	}

	c := newTestCrawler(t)

	result, err := c.Crawl(t.Context(), cfg)
	require.NoError(t, err)
	require.Empty(t, result.Documents)
	require.True(t, result.Stats.RobotsForbidden)
}

func TestCrawler_IncrementalDoesNotFollowTransitiveLinks(t *testing.T) {
	pages := map[string]string{
		"/": `<html><head><title>Home</title></head><body><main>
			<p>Home page content long enough to pass through the parser cleanly.</p>
			<a href="/a">A</a>
		</main></body></html>`,
		"/a": `<html><head><title>A</title></head><body><main>
			<p>Page A content, also long enough, linking further onward.</p>
			<a href="/b">B</a>
		</main></body></html>`,
		"/b":          `<html><head><title>B</title></head><body><main><p>Page B content that should never be reached.</p></main></body></html>`,
		"/robots.txt": "User-agent: *\nAllow: /\n",
	}

	srv, domainFor := newTestSite(t, func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if strings.HasSuffix(r.URL.Path, ".txt") {
			w.Header().Set("Content-Type", "text/plain")
		} else {
			w.Header().Set("Content-Type", "text/html")
		}

		_, _ = w.Write([]byte(body))
	})
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")

	cfg := &siteconfig.Config{
		Domain:             domainFor(host),
		FullIndex:          false,
		EffectivePageLimit: 10,
		PriorContents:      map[string]siteconfig.PriorContent{},
		AlreadyIndexedURLs: map[string]struct{}{},
	}

	c := newTestCrawler(t)

	result, err := c.Crawl(t.Context(), cfg)
	require.NoError(t, err)

	var urls []string
	for _, d := range result.Documents {
		urls = append(urls, d.URL)
	}

	require.Contains(t, urls, srv.URL+"/")
	require.Contains(t, urls, srv.URL+"/a")
	require.NotContains(t, urls, srv.URL+"/b")
}

func TestCrawler_StopsAtPageLimit(t *testing.T) {
	pages := map[string]string{
		"/": `<html><head><title>Home</title></head><body><main>
			<p>Home content here, enough to pass the parser's content extraction step.</p>
			<a href="/a">A</a><a href="/b">B</a><a href="/c">C</a>
		</main></body></html>`,
		"/a":          `<html><head><title>A</title></head><body><main><p>Page A content for the limit test scenario here.</p></main></body></html>`,
		"/b":          `<html><head><title>B</title></head><body><main><p>Page B content for the limit test scenario here.</p></main></body></html>`,
		"/c":          `<html><head><title>C</title></head><body><main><p>Page C content for the limit test scenario here.</p></main></body></html>`,
		"/robots.txt": "User-agent: *\nAllow: /\n",
	}

	srv, domainFor := newTestSite(t, func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if strings.HasSuffix(r.URL.Path, ".txt") {
			w.Header().Set("Content-Type", "text/plain")
		} else {
			w.Header().Set("Content-Type", "text/html")
		}

		_, _ = w.Write([]byte(body))
	})
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")

	cfg := &siteconfig.Config{
		Domain:             domainFor(host),
		FullIndex:          true,
		EffectivePageLimit: 2,
		PriorContents:      map[string]siteconfig.PriorContent{},
		AlreadyIndexedURLs: map[string]struct{}{},
	}

	c := newTestCrawler(t)

	result, err := c.Crawl(t.Context(), cfg)
	require.NoError(t, err)
	require.Len(t, result.Documents, 2)
	require.Equal(t, "page-limit", result.Stats.StopReason)
}

func TestExcluded(t *testing.T) {
	c := compileExclusions([]registry.Filter{
		{Action: registry.FilterActionExclude, Type: registry.FilterTypePath, Value: "*.pdf"},
		{Action: registry.FilterActionExclude, Type: registry.FilterTypePath, Value: "/private/"},
	})

	require.True(t, c.extensions != nil)
	require.True(t, excluded("https://example.com/doc.pdf", c))
	require.True(t, excluded("https://example.com/private/page", c))
	require.False(t, excluded("https://example.com/public/page", c))
	require.True(t, excluded("https://example.com/image.png", c))
}

func TestMatchesSkipPattern(t *testing.T) {
	require.True(t, matchesSkipPattern("https://example.com/login"))
	require.True(t, matchesSkipPattern("https://twitter.com/share?url=x"))
	require.True(t, matchesSkipPattern("https://example.com/post?utm_source=feed"))
	require.False(t, matchesSkipPattern("https://example.com/posts/hello"))
	require.False(t, matchesSkipPattern("https://example.com/feed.xml"))
}

func TestWildcardExtension(t *testing.T) {
	ext, ok := wildcardExtension("*.pdf")
	require.True(t, ok)
	require.Equal(t, ".pdf", ext)

	_, ok = wildcardExtension("/private/")
	require.False(t, ok)
}
