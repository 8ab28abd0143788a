// Package fetch downloads audio bytes from storage or public URLs.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client downloads audio content. The underlying HTTP client is shared and
// reused across calls.
type Client struct {
	http           *http.Client
	maxElapsedTime time.Duration
}

// New returns a download client. A nil httpClient gets a default with a
// generous timeout sized for large audio files.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{http: httpClient, maxElapsedTime: 60 * time.Second}
}

// Download fetches the content at url, retrying transient failures with
// exponential backoff. Client errors (4xx) are not retried.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch: build request: %w", err))
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("fetch: get %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("fetch: get %s: server error %d", url, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("fetch: get %s: status %d", url, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("fetch: read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsedTime
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
