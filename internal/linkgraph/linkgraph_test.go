package linkgraph

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitevane/indexer/internal/core/solr"
)

func newTestResolver(t *testing.T, body string) (*Resolver, func()) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))

	client := solr.New(solr.Config{BaseURL: srv.URL})

	return New(client), srv.Close
}

func TestResolver_Inlinks(t *testing.T) {
	body := `{
		"response": {
			"numFound": 2,
			"start": 0,
			"docs": [
				{"url": "https://other.com/a", "indexed_outlinks": ["https://example.com/x", "https://unrelated.com/y"]},
				{"url": "https://other.com/b", "indexed_outlinks": ["https://example.com/z"]}
			]
		}
	}`

	r, closeFn := newTestResolver(t, body)
	defer closeFn()

	inlinks, err := r.Inlinks(t.Context(), "example.com")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"https://other.com/a"}, inlinks["https://example.com/x"])
	require.ElementsMatch(t, []string{"https://other.com/b"}, inlinks["https://example.com/z"])
	require.NotContains(t, inlinks, "https://unrelated.com/y")
}

func TestResolver_PriorContents(t *testing.T) {
	body := `{
		"response": {
			"numFound": 1,
			"start": 0,
			"docs": [
				{
					"url": "https://example.com/post",
					"content": "hello world",
					"content_last_modified": "2026-01-01T00:00:00Z",
					"content_chunks": [
						{"id": "https://example.com/post!chunk001", "content_chunk_text": "hello", "content_chunk_vector": [0.1, 0.2]}
					]
				}
			]
		}
	}`

	r, closeFn := newTestResolver(t, body)
	defer closeFn()

	contents, err := r.PriorContents(t.Context(), "example.com")
	require.NoError(t, err)
	require.Contains(t, contents, "https://example.com/post")
	pc := contents["https://example.com/post"]
	require.Equal(t, "hello world", pc.Content)
	require.Len(t, pc.Chunks, 1)
	require.Equal(t, "https://example.com/post!chunk001", pc.Chunks[0].ID)
}

func TestResolver_AlreadyIndexedURLs(t *testing.T) {
	body := `{
		"response": {
			"numFound": 2,
			"start": 0,
			"docs": [
				{"url": "https://example.com/a"},
				{"url": "https://example.com/b"}
			]
		}
	}`

	r, closeFn := newTestResolver(t, body)
	defer closeFn()

	urls, err := r.AlreadyIndexedURLs(t.Context(), "example.com")
	require.NoError(t, err)
	require.Contains(t, urls, "https://example.com/a")
	require.Contains(t, urls, "https://example.com/b")
	require.Len(t, urls, 2)
}
