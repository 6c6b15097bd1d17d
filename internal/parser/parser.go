// Package parser extracts fields from a fetched response (HTML page, XML
// feed, or neither) into an Indexed Document, implementing content-change
// detection and page-type exclusion along the way.
package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"golang.org/x/text/cases"

	"github.com/sitevane/indexer/internal/core/solr"
	"github.com/sitevane/indexer/internal/registry"
	"github.com/sitevane/indexer/internal/siteconfig"
)

// Response is one fetched page handed to the Parser by the Site Crawler.
type Response struct {
	// URL is the post-redirect URL the body was fetched from.
	URL string
	// PreRedirectURL is the URL originally requested; equals URL unless the
	// server redirected.
	PreRedirectURL string
	IsHome         bool
	ContentType    string
	LastModified   time.Time
	Body           []byte
}

// Result is what the Parser hands back to the Index Writer: either a parsed
// document, or a drop with no document (exclusion, parse failure).
type Result struct {
	Document solr.Document
	Dropped  bool
}

// Parser extracts Indexed Document fields.
type Parser struct {
	siteCategory  string
	ownerVerified bool
	apiEnabled    bool
	public        bool
	common        siteconfig.Common
	exclusions    []registry.Filter
}

// New builds a Parser scoped to one Site Configuration's registry snapshot
// and common data.
func New(cfg *siteconfig.Config) *Parser {
	return &Parser{
		siteCategory:  cfg.Domain.Category,
		ownerVerified: cfg.Domain.ListingTier == 3,
		apiEnabled:    cfg.Domain.APIEnabled,
		public:        cfg.Domain.ListingStatus == registry.ListingActive,
		common:        cfg.Common,
		exclusions:    cfg.Exclusions,
	}
}

// Parse dispatches on the response's content type: HTML-capable,
// XML-capable (including feeds), or neither, in which case the item is
// dropped.
func (p *Parser) Parse(resp Response, domain string, inlinks map[string][]string, priorContent siteconfig.PriorContent) Result {
	contentType := firstToken(resp.ContentType)

	doc := solr.Document{
		ID:            resp.PreRedirectURL,
		URL:           resp.URL,
		Domain:        domain,
		Relationship:  solr.RelationshipParent,
		IsHome:        resp.IsHome,
		ContentType:   contentType,
		IndexedDate:   time.Now().UTC(),
		SiteCategory:  p.siteCategory,
		OwnerVerified: p.ownerVerified,
		Public:        p.public,
	}

	if resp.IsHome {
		doc.APIEnabled = p.apiEnabled
	}

	if !resp.LastModified.IsZero() {
		doc.PageLastModified = resp.LastModified
	}

	applyInlinks(&doc, inlinks[resp.URL])

	switch {
	case isXMLContentType(contentType):
		parseXML(&doc, resp.Body)
	case isHTMLContentType(contentType):
		p.parseHTML(&doc, resp.Body, domain)
	default:
		return Result{Dropped: true}
	}

	applyContentChangeDetection(&doc, priorContent, resp.LastModified)

	if p.excludedByType(doc.PageType) {
		return Result{Dropped: true}
	}

	return Result{Document: doc}
}

func applyInlinks(doc *solr.Document, inlinks []string) {
	if len(inlinks) == 0 {
		return
	}

	doc.IndexedInlinks = inlinks
	doc.IndexedInlinksCount = len(inlinks)

	domains := make(map[string]struct{})

	for _, inlink := range inlinks {
		domains[hostOf(inlink)] = struct{}{}
	}

	for d := range domains {
		doc.IndexedInlinkDomains = append(doc.IndexedInlinkDomains, d)
	}

	doc.IndexedInlinkDomainsCount = len(doc.IndexedInlinkDomains)
}

func (p *Parser) excludedByType(pageType string) bool {
	if pageType == "" {
		return false
	}

	for _, f := range p.exclusions {
		if f.Action == registry.FilterActionExclude && f.Type == registry.FilterTypeType && f.Value == pageType {
			return true
		}
	}

	return false
}

func firstToken(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}

	return strings.TrimSpace(contentType)
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "html")
}

func isXMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "xml") || strings.Contains(ct, "rss") || strings.Contains(ct, "atom")
}

var adsbygoogleSelector = "ins.adsbygoogle"

// parseHTML fills in the HTML-only fields.
func (p *Parser) parseHTML(doc *solr.Document, body []byte, domain string) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return
	}

	doc.Title = strings.TrimSpace(dom.Find("title").First().Text())
	doc.Author = metaContent(dom, "author")
	doc.Description = coalesce(metaContent(dom, "description"), metaProperty(dom, "og:description"))
	doc.Tags = parseTags(coalesce(metaContent(dom, "keywords"), articleTagList(dom)))
	doc.Content = extractMainContent(dom)
	doc.ContainsAdverts = dom.Find(adsbygoogleSelector).Length() > 0
	doc.Language, doc.LanguagePrimary = parseLanguage(dom)
	doc.PageType = coalesce(metaProperty(dom, "og:type"), dom.Find("article").AttrOr("data-post-type", ""))
	doc.IndexedOutlinks = p.extractOutlinks(dom, domain)

	if published := parsePublishedDate(dom); !published.IsZero() {
		doc.PublishedDate = published
	}
}

// parseXML fills in the XML-only fields. If the body parses as a valid web
// feed, mark is_web_feed (via page_type="feed") so the writer's feed
// selection can treat it accordingly.
func parseXML(doc *solr.Document, body []byte) {
	if feed, err := gofeed.NewParser().ParseString(string(body)); err == nil && feed != nil {
		doc.Title = feed.Title
		doc.PageType = "feed"

		return
	}

	root := rootElementName(body)
	doc.Title = root
	doc.PageType = root
}

var rootElementPattern = regexp.MustCompile(`<\s*([a-zA-Z][\w:-]*)`)

func rootElementName(body []byte) string {
	loc := rootElementPattern.FindSubmatch(body)
	if loc == nil {
		return ""
	}

	name := string(loc[1])
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}

	return name
}

func metaContent(dom *goquery.Document, name string) string {
	v, _ := dom.Find("meta[name='" + name + "']").Attr("content")
	return strings.TrimSpace(v)
}

func metaProperty(dom *goquery.Document, property string) string {
	v, _ := dom.Find("meta[property='" + property + "']").Attr("content")
	return strings.TrimSpace(v)
}

func articleTagList(dom *goquery.Document) string {
	var tags []string

	dom.Find("meta[property='article:tag']").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && v != "" {
			tags = append(tags, v)
		}
	})

	return strings.Join(tags, ",")
}

var tagCaser = cases.Fold()

// parseTags splits on commas, or on whitespace when there's no comma and
// more than one space, case-folding and deduplicating the result.
func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parts []string

	if strings.Contains(raw, ",") {
		parts = strings.Split(raw, ",")
	} else if strings.Count(raw, " ") > 1 {
		parts = strings.Fields(raw)
	} else {
		parts = []string{raw}
	}

	tags := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))

	for _, p := range parts {
		p = tagCaser.String(strings.TrimSpace(p))
		if p == "" {
			continue
		}

		if _, dup := seen[p]; dup {
			continue
		}

		seen[p] = struct{}{}
		tags = append(tags, p)
	}

	return tags
}

// extractMainContent extracts plain text from <main> if present, else
// <article>, else <body>, with <nav>, <header>, <footer> removed, whitespace
// collapsed.
func extractMainContent(dom *goquery.Document) string {
	dom.Find("nav, header, footer").Remove()

	var container *goquery.Selection

	for _, sel := range []string{"main", "article", "body"} {
		found := dom.Find(sel).First()
		if found.Length() > 0 {
			container = found
			break
		}
	}

	if container == nil {
		return ""
	}

	return collapseWhitespace(container.Text())
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// parsePublishedDate reads article:published_time, dc.date.issued, or
// itemprop=datePublished, parsing tolerantly and skipping on parse failure.
func parsePublishedDate(dom *goquery.Document) time.Time {
	candidates := []string{
		metaProperty(dom, "article:published_time"),
		metaContent(dom, "dc.date.issued"),
	}

	if v, ok := dom.Find("[itemprop='datePublished']").Attr("content"); ok {
		candidates = append(candidates, v)
	} else if v, ok := dom.Find("[itemprop='datePublished']").Attr("datetime"); ok {
		candidates = append(candidates, v)
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}

		if t, err := dateparse.ParseAny(c); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}

// parseLanguage reads html@lang; language_primary is its first two
// characters.
func parseLanguage(dom *goquery.Document) (string, string) {
	lang, _ := dom.Find("html").Attr("lang")
	lang = strings.TrimSpace(lang)

	primary := lang
	if len(primary) > 2 {
		primary = primary[:2]
	}

	return lang, primary
}

func (p *Parser) extractOutlinks(dom *goquery.Document, domain string) []string {
	var outlinks []string

	seen := make(map[string]struct{})

	dom.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}

		host := hostOf(href)
		if host == "" || host == domain {
			return
		}

		if !p.common.IsOtherRegisteredDomain(host) {
			return
		}

		if _, dup := seen[href]; dup {
			return
		}

		seen[href] = struct{}{}
		outlinks = append(outlinks, href)
	})

	return outlinks
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

	if at := strings.IndexByte(rest, '@'); at >= 0 {
		rest = rest[at+1:]
	}

	return strings.ToLower(rest)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

// applyContentChangeDetection decides content_last_modified: a changed
// page stamps now, an unchanged one carries the prior value forward, and a
// newly seen page falls back to the Last-Modified header.
func applyContentChangeDetection(doc *solr.Document, prior siteconfig.PriorContent, pageLastModified time.Time) {
	newContent := doc.Content
	prevContent := prior.Content

	switch {
	case newContent == "":
		return
	case prevContent == "":
		if !pageLastModified.IsZero() {
			doc.ContentLastModified = pageLastModified
		} else {
			doc.ContentLastModified = doc.IndexedDate
		}
	case newContent == prevContent:
		switch {
		case !prior.ContentLastModified.IsZero():
			doc.ContentLastModified = prior.ContentLastModified
		case !pageLastModified.IsZero():
			doc.ContentLastModified = pageLastModified
		default:
			doc.ContentLastModified = doc.IndexedDate
		}
	default:
		doc.ContentLastModified = doc.IndexedDate
	}
}
