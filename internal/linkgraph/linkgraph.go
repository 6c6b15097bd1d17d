// Package linkgraph pre-fetches, from the search index, the state a Site
// Crawler needs before a crawl begins: inbound links to the domain being
// indexed, the domain's prior-indexed content (for change detection and
// embedding reuse), and, for incremental jobs, the set of URLs already in
// the index.
package linkgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitevane/indexer/internal/core/solr"
	"github.com/sitevane/indexer/internal/siteconfig"
)

const (
	maxInlinkRows         = 10000
	maxPriorContentRows   = 1000
	maxAlreadyIndexedRows = 10000
)

// Resolver reads the index to build the inbound-link map and prior-content
// cache a Site Configuration needs.
type Resolver struct {
	client *solr.Client
}

// New builds a Resolver over an already-configured Solr client.
func New(client *solr.Client) *Resolver {
	return &Resolver{client: client}
}

// Inlinks queries the index for documents whose indexed_outlinks contain
// domain and inverts the result into a url → [inbound_url] map.
func (r *Resolver) Inlinks(ctx context.Context, domain string) (map[string][]string, error) {
	resp, err := r.client.Search(ctx, fmt.Sprintf("indexed_outlinks:*%s*", solr.EscapeQueryTerm(domain)),
		solr.WithFields("url,indexed_outlinks"),
		solr.WithRows(maxInlinkRows),
	)
	if err != nil {
		return nil, fmt.Errorf("query inlinks for %s: %w", domain, err)
	}

	inlinks := make(map[string][]string)

	for _, doc := range resp.Response.Docs {
		for _, outlink := range doc.IndexedOutlinks {
			if !strings.Contains(outlink, domain) {
				continue
			}

			inlinks[outlink] = append(inlinks[outlink], doc.URL)
		}
	}

	return inlinks, nil
}

// PriorContents loads the domain's parent documents with their nested
// content chunks, used for content-change detection and embedding reuse.
func (r *Resolver) PriorContents(ctx context.Context, domain string) (map[string]siteconfig.PriorContent, error) {
	resp, err := r.client.Search(ctx, fmt.Sprintf("domain:%s", solr.EscapeQueryTerm(domain)),
		solr.WithFilterQuery("relationship:"+solr.RelationshipParent),
		solr.WithRows(maxPriorContentRows),
	)
	if err != nil {
		return nil, fmt.Errorf("query prior contents for %s: %w", domain, err)
	}

	contents := make(map[string]siteconfig.PriorContent, len(resp.Response.Docs))

	for _, doc := range resp.Response.Docs {
		pc := siteconfig.PriorContent{
			URL:                 doc.URL,
			Content:             doc.Content,
			ContentLastModified: doc.ContentLastModified,
		}

		for _, chunk := range doc.ContentChunks {
			pc.Chunks = append(pc.Chunks, siteconfig.PriorChunk{
				ID:     chunk.ID,
				Text:   chunk.ContentChunkText,
				Vector: chunk.ContentChunkVector,
			})
		}

		contents[doc.URL] = pc
	}

	return contents, nil
}

// AlreadyIndexedURLs loads the set of URLs already indexed for domain on
// documents whose relationship is not child, used to bound incremental
// crawls to new pages only.
func (r *Resolver) AlreadyIndexedURLs(ctx context.Context, domain string) (map[string]struct{}, error) {
	resp, err := r.client.Search(ctx, fmt.Sprintf("domain:%s", solr.EscapeQueryTerm(domain)),
		solr.WithFilterQuery("-relationship:"+solr.RelationshipChild),
		solr.WithFields("url"),
		solr.WithRows(maxAlreadyIndexedRows),
	)
	if err != nil {
		return nil, fmt.Errorf("query already-indexed urls for %s: %w", domain, err)
	}

	urls := make(map[string]struct{}, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		urls[doc.URL] = struct{}{}
	}

	return urls, nil
}

