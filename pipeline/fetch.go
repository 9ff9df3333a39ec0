package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for geometry fetches.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3

	// defaultBaseBackoff is the base delay for exponential backoff.
	defaultBaseBackoff = 500 * time.Millisecond

	// maxResponseBytes limits the response body to 100 MB. Dissemination-area
	// boundary files are large but bounded.
	maxResponseBytes = 100 << 20
)

// FetchOption configures FetchCollection behavior.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	client      *http.Client
}

func defaultFetchConfig() fetchConfig {
	return fetchConfig{
		timeout:     DefaultFetchTimeout,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) FetchOption {
	return func(c *fetchConfig) {
		c.maxRetries = n
	}
}

// WithBaseBackoff sets the base delay for exponential backoff between retries.
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(c *fetchConfig) {
		c.baseBackoff = d
	}
}

// WithHTTPClient overrides the default HTTP client (useful for testing).
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) {
		c.client = client
	}
}

// FetchCollection fetches a GeoJSON FeatureCollection from the given URL.
// Network failures and congestion statuses (429, 5xx) are retried with
// exponential backoff; other HTTP statuses, oversized bodies, and malformed
// documents fail on the first attempt.
func FetchCollection(ctx context.Context, url string, opts ...FetchOption) (*FeatureCollection, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch geometry: URL is empty")
	}

	cfg := defaultFetchConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := cfg.baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch geometry: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		fc, retry, err := fetchOnce(ctx, client, url)
		if err == nil {
			return fc, nil
		}
		if !retry {
			return nil, fmt.Errorf("fetch geometry: %w", err)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch geometry: all %d attempts failed: %w", cfg.maxRetries, lastErr)
}

// fetchOnce performs one GET and decodes the body as a FeatureCollection,
// streaming it through the decoder instead of buffering the whole boundary
// file. The second return reports whether the failure is worth retrying:
// transport errors and congestion are, while client errors and malformed
// documents are final.
func fetchOnce(ctx context.Context, client *http.Client, url string) (*FeatureCollection, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > maxResponseBytes {
		return nil, false, fmt.Errorf("HTTP GET %s: body of %d bytes exceeds the %d byte cap",
			url, resp.ContentLength, int64(maxResponseBytes))
	}

	var fc FeatureCollection
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&fc); err != nil {
		return nil, false, fmt.Errorf("decoding GeoJSON from %s: %w", url, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, false, fmt.Errorf("decoding GeoJSON from %s: unexpected type %q", url, fc.Type)
	}
	if fc.Features == nil {
		fc.Features = make([]*Feature, 0)
	}
	return &fc, false, nil
}
