// Package chunker splits a parsed page's content into overlapping chunks and
// generates vector embeddings for each, reusing a prior full reindex's
// chunks verbatim when content is unchanged.
//
// Operational note: reused chunks keep the vectors they were stored with, and
// the chunker never checks which embedding model produced them. After a
// change of embedding provider, model or dimensions, an operator deletes all
// child chunk documents from the index so the next full reindex embeds every
// page again.
package chunker

import (
	"context"

	"github.com/sitevane/indexer/internal/core/embeddings"
	"github.com/sitevane/indexer/internal/core/solr"
	"github.com/sitevane/indexer/internal/siteconfig"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
)

// Chunker splits page content and fills in embeddings, consulting the
// registry's embedding provider fallback chain.
type Chunker struct {
	embeddings   embeddings.Client
	chunkSize    int
	chunkOverlap int
}

// New builds a Chunker backed by client, using the default chunk size and
// overlap.
func New(client embeddings.Client) *Chunker {
	return &Chunker{embeddings: client, chunkSize: defaultChunkSize, chunkOverlap: defaultChunkOverlap}
}

// Split is the recursive-character splitter: it greedily fills chunkSize
// windows, each overlapping the previous by chunkOverlap characters,
// preferring to break on a paragraph, then sentence, then word boundary.
func Split(content string, chunkSize, chunkOverlap int) []string {
	if content == "" || chunkSize <= 0 {
		return nil
	}

	separators := []string{"\n\n", ". ", " "}

	return splitRecursive(content, chunkSize, chunkOverlap, separators)
}

func splitRecursive(content string, chunkSize, chunkOverlap int, separators []string) []string {
	runes := []rune(content)
	if len(runes) <= chunkSize {
		return []string{content}
	}

	var chunks []string

	start := 0

	for start < len(runes) {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		} else {
			for _, s := range separators {
				if indexOfRunes(runes[start:end], []rune(s)) >= 0 {
					end = lastBoundary(runes, start, end, []rune(s))
					break
				}
			}
		}

		chunks = append(chunks, string(runes[start:end]))

		if end >= len(runes) {
			break
		}

		next := end - chunkOverlap
		if next <= start {
			next = end
		}

		start = next
	}

	return chunks
}

func indexOfRunes(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}

	for i := 0; i <= len(haystack)-len(needle); i++ {
		match := true

		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}

		if match {
			return i
		}
	}

	return -1
}

// lastBoundary finds the last occurrence of sep within runes[start:end] and
// returns the index just past it, or end if none is found.
func lastBoundary(runes []rune, start, end int, sep []rune) int {
	for i := end; i > start; i-- {
		hi := i
		if hi > len(runes) {
			hi = len(runes)
		}

		lo := hi - len(sep)
		if lo < start {
			break
		}

		match := true

		for j := range sep {
			if runes[lo+j] != sep[j] {
				match = false
				break
			}
		}

		if match {
			return hi
		}
	}

	return end
}

// Chunk produces the content chunks for one parent document. When content is
// unchanged from the prior indexed version and prior chunks exist, the prior
// chunks are reused verbatim (no re-embedding). Otherwise it regenerates,
// dropping any chunk whose embedding fails.
func (c *Chunker) Chunk(ctx context.Context, parentID, content string, chunkLimit int, contentUnchanged bool, prior []siteconfig.PriorChunk) []solr.Document {
	if content == "" {
		return nil
	}

	if contentUnchanged && len(prior) > 0 {
		return reuseChunks(prior, chunkLimit)
	}

	pieces := Split(content, c.chunkSize, c.chunkOverlap)
	if len(pieces) > chunkLimit {
		pieces = pieces[:chunkLimit]
	}

	docs := make([]solr.Document, 0, len(pieces))

	for i, piece := range pieces {
		chunkNo := i + 1

		vector, err := c.embeddings.GetEmbedding(ctx, piece)
		if err != nil {
			// A single chunk's embedding failure drops only that chunk
			continue
		}

		docs = append(docs, solr.Document{
			ID:                 solr.ChunkID(parentID, chunkNo),
			Relationship:       solr.RelationshipChild,
			ContentChunkNo:     chunkNo,
			ContentChunkText:   piece,
			ContentChunkVector: vector,
		})
	}

	return docs
}

func reuseChunks(prior []siteconfig.PriorChunk, chunkLimit int) []solr.Document {
	if len(prior) > chunkLimit {
		prior = prior[:chunkLimit]
	}

	docs := make([]solr.Document, 0, len(prior))

	for i, p := range prior {
		docs = append(docs, solr.Document{
			ID:                 p.ID,
			Relationship:       solr.RelationshipChild,
			ContentChunkNo:     i + 1,
			ContentChunkText:   p.Text,
			ContentChunkVector: p.Vector,
		})
	}

	return docs
}

// ContentUnchanged is a small helper wrapping the comparison the Page Parser
// already performs for content-change detection, exposed here so the
// Chunker and the Parser agree on what "unchanged" means.
func ContentUnchanged(prevContent, newContent string) bool {
	return prevContent != "" && prevContent == newContent
}
