package solr

import (
	"fmt"
	"net/url"
	"strings"
)

// Constants for URL canonicalization.
const (
	portHTTP  = ":80"
	portHTTPS = ":443"

	chunkIDFormat = "%s!chunk%03d"
)

// CanonicalizeURL exposes the canonicalization logic for other packages.
func CanonicalizeURL(rawURL string) string {
	return canonicalizeURL(rawURL)
}

// canonicalizeURL normalizes a URL for consistent comparison.
// It lowercases the scheme and host, removes default ports, removes fragments,
// drops utm_* and share query parameters, sorts the remaining query
// parameters, and removes trailing slashes from the path.
func canonicalizeURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	// Normalize scheme
	parsed.Scheme = strings.ToLower(parsed.Scheme)

	// Normalize host
	parsed.Host = strings.ToLower(parsed.Host)

	// Remove default ports
	parsed.Host = removeDefaultPort(parsed.Host, parsed.Scheme)

	// Remove fragment
	parsed.Fragment = ""

	// Normalize path - remove trailing slash unless it's the root
	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	// Drop tracking/share parameters, then sort the rest
	if parsed.RawQuery != "" {
		query := parsed.Query()
		for key := range query {
			if strings.HasPrefix(key, "utm_") || key == "share" {
				query.Del(key)
			}
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// removeDefaultPort removes default ports (80 for http, 443 for https).
func removeDefaultPort(host, scheme string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, portHTTP):
		return strings.TrimSuffix(host, portHTTP)
	case scheme == "https" && strings.HasSuffix(host, portHTTPS):
		return strings.TrimSuffix(host, portHTTPS)
	default:
		return host
	}
}

// StripWWWHost returns rawURL with a single leading "www." label removed from
// its host, used by the Index Writer's intra-crawl dedup rule (same URL modulo
// a single leading "www." and the same title counts as a duplicate).
func StripWWWHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	return parsed.String()
}

// ChunkID formats the ID of the chunkNo'th (1-based) child chunk of parentID,
// e.g. "https://example.com/post!chunk001".
func ChunkID(parentID string, chunkNo int) string {
	return fmt.Sprintf(chunkIDFormat, parentID, chunkNo)
}

// EscapeQueryTerm escapes characters significant to Solr's standard query
// parser in a raw term embedded in a field or wildcard query.
func EscapeQueryTerm(s string) string {
	return queryTermReplacer.Replace(s)
}

var queryTermReplacer = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `&`, `\&`, `|`, `\|`, `!`, `\!`,
	`(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
	`^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`,
	`/`, `\/`, ` `, `\ `,
)
