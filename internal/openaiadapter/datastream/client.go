package datastream

import (
	"fmt"
	"net/http"
)

// newClient creates an HTTP client for the upstream with the provided transport.
// The transport chain needs to add upstream headers and credentials.
func newClient(transport http.RoundTripper) (*http.Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}

	return &http.Client{
		Transport: transport,
		// Client.Timeout = 0 allows long-running streams (bounded by the request context)
	}, nil
}
