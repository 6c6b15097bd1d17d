package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitevane/indexer/internal/core/solr"
	"github.com/sitevane/indexer/internal/registry"
	"github.com/sitevane/indexer/internal/siteconfig"
)

func newTestParser(exclusions ...registry.Filter) *Parser {
	cfg := &siteconfig.Config{
		Domain: registry.Domain{
			Category:    "blog",
			ListingTier: 3,
			APIEnabled:  true,
		},
		Exclusions: exclusions,
		Common: siteconfig.Common{
			OtherDomains: map[string]struct{}{"other.example": {}},
		},
	}

	return New(cfg)
}

const sampleHTML = `<html lang="en-US">
<head>
<title>My Post</title>
<meta name="author" content="Jane Doe">
<meta name="description" content="A post about Go">
<meta name="keywords" content="go, programming, testing">
<meta property="article:published_time" content="2026-01-15T10:00:00Z">
<meta property="og:type" content="article">
</head>
<body>
<header>Site Nav</header>
<main>
<p>This is the real content of the post.</p>
<ins class="adsbygoogle"></ins>
<a href="https://other.example/related">related</a>
<a href="https://unregistered.example/x">unregistered</a>
</main>
<footer>Copyright</footer>
</body>
</html>`

func TestParser_Parse_HTML(t *testing.T) {
	p := newTestParser()

	resp := Response{
		URL:            "https://example.com/post",
		PreRedirectURL: "https://example.com/post",
		IsHome:         true,
		ContentType:    "text/html; charset=utf-8",
		Body:           []byte(sampleHTML),
	}

	result := p.Parse(resp, "example.com", nil, siteconfig.PriorContent{})
	require.False(t, result.Dropped)

	doc := result.Document
	assert.Equal(t, "My Post", doc.Title)
	assert.Equal(t, "Jane Doe", doc.Author)
	assert.Equal(t, "A post about Go", doc.Description)
	assert.ElementsMatch(t, []string{"go", "programming", "testing"}, doc.Tags)
	assert.Contains(t, doc.Content, "real content of the post")
	assert.NotContains(t, doc.Content, "Site Nav")
	assert.NotContains(t, doc.Content, "Copyright")
	assert.True(t, doc.ContainsAdverts)
	assert.Equal(t, "en", doc.LanguagePrimary)
	assert.Equal(t, "article", doc.PageType)
	assert.Equal(t, []string{"https://other.example/related"}, doc.IndexedOutlinks)
	assert.True(t, doc.IsHome)
	assert.True(t, doc.APIEnabled)
	assert.Equal(t, 2026, doc.PublishedDate.Year())
	assert.Equal(t, "text/html", doc.ContentType)
}

func TestParser_Parse_ExcludedByPageType(t *testing.T) {
	p := newTestParser(registry.Filter{
		Domain: "example.com",
		Action: registry.FilterActionExclude,
		Type:   registry.FilterTypeType,
		Value:  "article",
	})

	resp := Response{
		URL:            "https://example.com/post",
		PreRedirectURL: "https://example.com/post",
		ContentType:    "text/html",
		Body:           []byte(sampleHTML),
	}

	result := p.Parse(resp, "example.com", nil, siteconfig.PriorContent{})
	assert.True(t, result.Dropped)
}

func TestParser_Parse_UnsupportedContentTypeDrops(t *testing.T) {
	p := newTestParser()

	resp := Response{
		URL:            "https://example.com/image.png",
		PreRedirectURL: "https://example.com/image.png",
		ContentType:    "image/png",
	}

	result := p.Parse(resp, "example.com", nil, siteconfig.PriorContent{})
	assert.True(t, result.Dropped)
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"comma separated", "go, testing, web", []string{"go", "testing", "web"}},
		{"whitespace separated", "go testing web", []string{"go", "testing", "web"}},
		{"single tag", "go", []string{"go"}},
		{"case-folded duplicates", "Go, go, GO", []string{"go"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTags(tt.in))
		})
	}
}

func TestApplyContentChangeDetection(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	pageLastMod := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	priorMod := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name             string
		newContent       string
		prior            siteconfig.PriorContent
		pageLastModified time.Time
		want             time.Time
	}{
		{
			name:       "content changed",
			newContent: "new",
			prior:      siteconfig.PriorContent{Content: "old"},
			want:       now,
		},
		{
			name:             "content unchanged, carries prior mod",
			newContent:       "same",
			prior:            siteconfig.PriorContent{Content: "same", ContentLastModified: priorMod},
			pageLastModified: pageLastMod,
			want:             priorMod,
		},
		{
			name:             "content unchanged, no prior mod, uses page last modified",
			newContent:       "same",
			prior:            siteconfig.PriorContent{Content: "same"},
			pageLastModified: pageLastMod,
			want:             pageLastMod,
		},
		{
			name:       "content unchanged, no prior mod, no page last modified, uses indexed date",
			newContent: "same",
			prior:      siteconfig.PriorContent{Content: "same"},
			want:       now,
		},
		{
			name:             "no prior content, page last modified present",
			newContent:       "fresh",
			pageLastModified: pageLastMod,
			want:             pageLastMod,
		},
		{
			name:       "no prior content, no page last modified",
			newContent: "fresh",
			want:       now,
		},
		{
			name: "no content at all leaves unset",
			want: time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &solr.Document{Content: tt.newContent, IndexedDate: now}
			applyContentChangeDetection(doc, tt.prior, tt.pageLastModified)
			assert.Equal(t, tt.want, doc.ContentLastModified)
		})
	}
}
