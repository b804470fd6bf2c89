// Package fetcher performs plain HTTP GETs for the crawl engine's static
// fetch step. Its Options/FetchResult shape is grounded on
// kungfusheep-browse/fetcher/fetcher.go, narrowed to the static-only
// contract spec §4.5 requires — browser rendering is the out-of-scope
// interactive session executor's job.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Options configures the package-level fetcher behavior.
type Options struct {
	UserAgent      string
	TimeoutSeconds int
}

// DefaultOptions returns the crawler's default fetch configuration.
func DefaultOptions() Options {
	return Options{
		UserAgent:      "WebxCrawler/1.0 (+https://example.invalid/bot)",
		TimeoutSeconds: 30,
	}
}

var opts = DefaultOptions()

// Configure overrides the package-level options; a zero-valued field in o
// leaves the current setting unchanged.
func Configure(o Options) {
	if o.UserAgent != "" {
		opts.UserAgent = o.UserAgent
	}
	if o.TimeoutSeconds > 0 {
		opts.TimeoutSeconds = o.TimeoutSeconds
	}
}

// UserAgent returns the currently configured user agent string.
func UserAgent() string {
	return opts.UserAgent
}

var client = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// FetchError represents a non-2xx HTTP response, per spec §4.5.
type FetchError struct {
	Status     int
	StatusText string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed: %d %s", e.Status, e.StatusText)
}

// FetchResult is the outcome of a successful static fetch.
type FetchResult struct {
	HTML      string
	FinalURL  string
	FetchTime time.Duration
}

// OpenStatic GETs targetURL with redirects followed and the configured
// user agent, failing with *FetchError on any non-2xx response.
func OpenStatic(ctx context.Context, targetURL string) (*FetchResult, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	timeout := time.Duration(opts.TimeoutSeconds) * time.Second
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.Do(req.WithContext(timeoutCtx))
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Status: resp.StatusCode, StatusText: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &FetchResult{
		HTML:      string(body),
		FinalURL:  finalURL,
		FetchTime: time.Since(start),
	}, nil
}
