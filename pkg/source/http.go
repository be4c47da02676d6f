package source

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultHTTPTimeout bounds a registry download.
const DefaultHTTPTimeout = 5 * time.Second

// HTTPFetcher downloads documents over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher using hc, or a client with
// DefaultHTTPTimeout when hc is nil.
func NewHTTPFetcher(hc *http.Client) *HTTPFetcher {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPFetcher{client: hc}
}

func (h *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: get %s: %w", req.URL.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Redacted())
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("source: get %s: status %d", req.URL.Redacted(), resp.StatusCode)
	}
	return readLimited(resp.Body)
}
