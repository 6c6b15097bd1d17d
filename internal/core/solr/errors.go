package solr

import "errors"

// Error definitions for Solr client operations.
var (
	// ErrServerError is returned for Solr internal errors (HTTP 5xx).
	ErrServerError = errors.New("solr server error")

	// ErrClientDisabled is returned when operations are attempted on a disabled client.
	ErrClientDisabled = errors.New("solr client disabled")
)
