package feed

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pders01/dispatch/internal/newsapi"
)

const defaultUserAgent = "dispatch/1.0 (news reader; github.com/pders01/dispatch)"

// validators are the conditional-GET headers remembered per feed URL.
type validators struct {
	etag         string
	lastModified string
}

type Fetcher struct {
	client    *http.Client
	userAgent string

	mu   sync.Mutex
	seen map[string]validators
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		seen:      make(map[string]validators),
	}
}

// Fetch GETs url. It returns updated=false with a nil response when the
// server answered 304 Not Modified. Status codes of 400 and above become
// *newsapi.HTTPError so callers see rate limits the same way for every
// source.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*http.Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	f.mu.Lock()
	v := f.seen[url]
	f.mu.Unlock()
	if v.etag != "" {
		req.Header.Set("If-None-Match", v.etag)
	}
	if v.lastModified != "" {
		req.Header.Set("If-Modified-Since", v.lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetching feed: %w", err)
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return nil, false, nil
	}

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, false, &newsapi.HTTPError{
			StatusCode: resp.StatusCode,
			Path:       url,
			RetryAfter: retryAfter(resp),
		}
	}

	f.remember(url, resp)
	return resp, true, nil
}

func (f *Fetcher) remember(url string, resp *http.Response) {
	v := validators{
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}
	if v.etag == "" && v.lastModified == "" {
		return
	}
	f.mu.Lock()
	f.seen[url] = v
	f.mu.Unlock()
}

// forget drops validators so the next fetch is unconditional.
func (f *Fetcher) forget(url string) {
	f.mu.Lock()
	delete(f.seen, url)
	f.mu.Unlock()
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
