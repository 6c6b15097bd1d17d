// Package solr provides a client for interacting with Apache Solr.
//
// The Client is used for:
//
//   - Reading the inbound-link graph and prior-content cache before a crawl
//   - Writing parent/child (page/chunk) documents on crawl commit
//   - Delete-by-query for full reindex and listing-expiry cleanup
//
// The client handles JSON serialization, error handling, and retries.
package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxResults   = 10
	healthCheckTimeout  = 5 * time.Second
	selectPath          = "/select"
	updatePath          = "/update"
	contentTypeJSON     = "application/json"
	contentTypeForm     = "application/x-www-form-urlencoded"
	headerContentType   = "Content-Type"
	httpStatusConflict  = 409
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB
	errBodyReadLimit    = 1024
	errStatusBodyFmt    = "%w: status %d, body: %s"
	errStatusFmt        = "%w: status %d"
	maxURILength        = 4096 // Use POST for queries longer than this
)

// Client provides methods to interact with a SolrCloud collection.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxResults int
	enabled    bool
}

// New creates a new Solr client with the given configuration.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		maxResults: maxResults,
		enabled:    cfg.BaseURL != "", // Enabled if BaseURL is configured
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Enabled returns whether the client is enabled.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Ping checks if Solr is reachable and the collection exists.
func (c *Client) Ping(ctx context.Context) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	// Use admin/ping endpoint
	pingURL := c.baseURL + "/admin/ping"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(errStatusFmt, ErrServerError, resp.StatusCode)
	}

	return nil
}

// Search executes a search query and returns matching documents.
// Uses GET for short queries, POST for long queries to avoid URI length limits.
func (c *Client) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	if !c.enabled {
		return nil, ErrClientDisabled
	}

	params := &searchParams{
		q:    query,
		rows: c.maxResults,
	}

	for _, opt := range opts {
		opt(params)
	}

	var req *http.Request

	var err error

	searchURL := c.buildSearchURL(params)

	// Use POST for long queries to avoid URI length limits (HTTP 414)
	if len(searchURL) > maxURILength {
		req, err = c.buildSearchPOSTRequest(ctx, params)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, errBodyReadLimit))
		if readErr != nil {
			return nil, fmt.Errorf(errStatusFmt, ErrServerError, resp.StatusCode)
		}

		return nil, fmt.Errorf(errStatusBodyFmt, ErrServerError, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	return &result, nil
}

// buildSearchPOSTRequest creates a POST request for Solr search.
// Used when query parameters exceed URI length limits.
func (c *Client) buildSearchPOSTRequest(ctx context.Context, params *searchParams) (*http.Request, error) {
	postURL := c.baseURL + selectPath

	// Build form data
	formData := c.buildSearchParams(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create POST request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeForm)

	return req, nil
}

// IndexDocuments adds or updates Indexed Documents, each carrying its
// content chunks as nested child documents (Solr block-join syntax).
func (c *Client) IndexDocuments(ctx context.Context, docs ...Document) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	if len(docs) == 0 {
		return nil
	}

	return c.sendUpdate(ctx, docs, true)
}

// DeleteByQuery removes documents matching a query.
func (c *Client) DeleteByQuery(ctx context.Context, query string) error {
	if !c.enabled {
		return ErrClientDisabled
	}

	deleteCmd := map[string]interface{}{
		"delete": map[string]string{
			"query": query,
		},
	}

	body, err := json.Marshal(deleteCmd)
	if err != nil {
		return fmt.Errorf("marshal delete by query: %w", err)
	}

	updateURL := c.baseURL + updatePath + "?commit=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, updateURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create delete by query request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete by query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, errBodyReadLimit))
		if readErr != nil {
			return fmt.Errorf(errStatusFmt, ErrServerError, resp.StatusCode)
		}

		return fmt.Errorf(errStatusBodyFmt, ErrServerError, resp.StatusCode, string(respBody))
	}

	return nil
}

// sendUpdate sends documents to the update handler.
func (c *Client) sendUpdate(ctx context.Context, docs interface{}, commit bool) error {
	body, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}

	updateURL := c.baseURL + updatePath
	if commit {
		updateURL += "?commit=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, updateURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create update request: %w", err)
	}

	req.Header.Set(headerContentType, contentTypeJSON)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	defer resp.Body.Close()

	// Treat 409 Conflict as success for idempotent indexing operations.
	// A version conflict means another pod already indexed the same document,
	// which is the desired end state.
	if resp.StatusCode == httpStatusConflict {
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, errBodyReadLimit))
		if readErr != nil {
			return fmt.Errorf(errStatusFmt, ErrServerError, resp.StatusCode)
		}

		return fmt.Errorf(errStatusBodyFmt, ErrServerError, resp.StatusCode, string(respBody))
	}

	return nil
}

// searchParams holds search query parameters.
type searchParams struct {
	q    string
	fq   []string
	fl   string
	rows int
}

// SearchOption configures a search query.
type SearchOption func(*searchParams)

// WithFilterQuery adds a filter query.
func WithFilterQuery(fq string) SearchOption {
	return func(p *searchParams) {
		p.fq = append(p.fq, fq)
	}
}

// WithFields sets the fields to return.
func WithFields(fields string) SearchOption {
	return func(p *searchParams) {
		p.fl = fields
	}
}

// WithRows sets the maximum number of results.
func WithRows(rows int) SearchOption {
	return func(p *searchParams) {
		p.rows = rows
	}
}

// buildSearchParams constructs the URL values for a search query.
func (c *Client) buildSearchParams(params *searchParams) url.Values {
	q := url.Values{}
	q.Set("q", params.q)
	q.Set("rows", strconv.Itoa(params.rows))
	q.Set("wt", "json")

	for _, fq := range params.fq {
		q.Add("fq", fq)
	}

	if params.fl != "" {
		q.Set("fl", params.fl)
	}

	return q
}

// buildSearchURL constructs the search URL with query parameters.
func (c *Client) buildSearchURL(params *searchParams) string {
	return c.baseURL + selectPath + "?" + c.buildSearchParams(params).Encode()
}
