// Package domainid computes the registry's identity for a URL: the public
// suffix plus the label below it, optionally widened by one more label when
// the registrable domain is on the "subdomains allowed" list.
//
// A host of `localhost` is special-cased: it is returned verbatim, checked
// before the allow-subdomain overlay.
package domainid

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// localhostLabel is returned verbatim for any host that resolves to
// "localhost", bypassing public-suffix lookup entirely since "localhost"
// isn't a real TLD and publicsuffix.EffectiveTLDPlusOne returns an error for it.
const localhostLabel = "localhost"

// Extractor computes domain identity, overlaying a configurable allow-list of
// registrable domains for which one extra subdomain label is kept.
type Extractor struct {
	subdomainsAllowed map[string]struct{}
}

// NewExtractor builds an Extractor from the registry's subdomain-allowed
// suffix list.
func NewExtractor(subdomainsAllowed []string) *Extractor {
	allowed := make(map[string]struct{}, len(subdomainsAllowed))
	for _, s := range subdomainsAllowed {
		allowed[strings.ToLower(s)] = struct{}{}
	}

	return &Extractor{subdomainsAllowed: allowed}
}

// Extract returns the domain identity for rawURL: the registrable domain
// (public suffix + one label), or "<subdomain>.<registrable>" when the
// registrable domain is in the allow-list, or the literal "localhost" when
// the host is localhost.
func (e *Extractor) Extract(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	return e.ExtractHost(parsed.Hostname())
}

// ExtractHost is Extract's host-only entry point, for callers that already
// have a bare hostname (e.g. from an http.Request).
func (e *Extractor) ExtractHost(host string) (string, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if host == localhostLabel {
		return localhostLabel, nil
	}

	// An IP literal is returned as-is: it has no public suffix to extract.
	if net.ParseIP(host) != nil {
		return host, nil
	}

	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// A host with no recognized public suffix (e.g. a bare "localhost"
		// alias) is returned as-is: there's nothing to widen with a
		// subdomain label.
		return host, nil //nolint:nilerr // unrecognized-suffix hosts are used verbatim, not an error condition
	}

	if _, ok := e.subdomainsAllowed[registrable]; !ok {
		return registrable, nil
	}

	if len(host) == len(registrable) {
		return registrable, nil
	}

	subdomain := strings.TrimSuffix(host, "."+registrable)

	return subdomain + "." + registrable, nil
}
