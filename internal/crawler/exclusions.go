package crawler

import (
	"strings"

	"github.com/sitevane/indexer/internal/registry"
)

// compiledExclusions splits a domain's path-type indexing filters into
// literal substring matches and `*.ext`-rewritten extension-suffix matches
type compiledExclusions struct {
	substrings []string
	extensions []string
}

func compileExclusions(filters []registry.Filter) compiledExclusions {
	var c compiledExclusions

	for _, f := range filters {
		if f.Action != registry.FilterActionExclude || f.Type != registry.FilterTypePath {
			continue
		}

		if ext, ok := wildcardExtension(f.Value); ok {
			c.extensions = append(c.extensions, ext)
			continue
		}

		c.substrings = append(c.substrings, f.Value)
	}

	return c
}

// wildcardExtension recognises a `*.ext`-style filter value and returns the
// extension with its leading dot, which excluded matches as a suffix of the
// URL with query and fragment removed (no regex is built).
func wildcardExtension(value string) (string, bool) {
	const wildcardPrefix = "*."

	if !strings.HasPrefix(value, wildcardPrefix) {
		return "", false
	}

	return "." + strings.TrimPrefix(value, wildcardPrefix), true
}

// skipPatterns are URL fragments that mark non-content pages, applied
// before a discovered link is queued, independent of the site's filters.
var skipPatterns = []string{
	// Social share URLs
	"twitter.com/share", "twitter.com/intent/", "x.com/share", "x.com/intent/",
	"facebook.com/sharer", "facebook.com/share.php",
	"pinterest.com/pin/create", "reddit.com/submit",
	"linkedin.com/shareArticle", "linkedin.com/cws/share",
	"telegram.me/share", "t.me/share", "bsky.app/intent/",
	"api.whatsapp.com/send", "wa.me/", "mailto:",
	// Auth/login pages
	"/login", "/signin", "/signup", "/register", "/auth/", "/oauth/",
	// Tracking and ads
	"/track/", "/pixel/", "/beacon/",
	// Print/email versions
	"/print/", "?print=", "&print=",
	// Non-content URL patterns
	"/ajax/", "/wp-json/", "/wp-includes/", "xmlrpc.php",
	"?replytocom=", "?share=", "?action=", "?utm_", "&utm_",
	// Search and category pages
	"?q=", "?s=", "/tag/", "/tags/", "/category/",
}

func matchesSkipPattern(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	for _, pattern := range skipPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}

	return false
}

// excluded reports whether rawURL should never be fetched: it matches the
// skip-pattern list, the fixed extension blacklist, one of the site's
// `*.ext` filters, or one of the site's literal path-substring filters.
func excluded(rawURL string, c compiledExclusions) bool {
	if matchesSkipPattern(rawURL) {
		return true
	}

	path := rawURL
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	lowerPath := strings.ToLower(path)

	for _, ext := range extensionBlacklist {
		if strings.HasSuffix(lowerPath, ext) {
			return true
		}
	}

	for _, ext := range c.extensions {
		if strings.HasSuffix(lowerPath, strings.ToLower(ext)) {
			return true
		}
	}

	for _, sub := range c.substrings {
		if strings.Contains(rawURL, sub) {
			return true
		}
	}

	return false
}
