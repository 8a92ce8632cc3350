package feed

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pders01/dispatch/internal/newsapi"
)

// GeneralCategory keys the feeds used when no category is requested.
const GeneralCategory = "general"

// Source serves headlines and keyword search from configured RSS/Atom
// feeds. Feeds are keyed by API category name ("business", "general", ...).
// Country and language are ignored; a feed already has both.
type Source struct {
	fetcher *Fetcher
	parser  *Parser
	feeds   map[string][]string

	mu    sync.Mutex
	items map[string][]newsapi.Article
}

func NewSource(feeds map[string][]string, timeout time.Duration, userAgent string) *Source {
	normalized := make(map[string][]string, len(feeds))
	for category, urls := range feeds {
		key := strings.ToLower(strings.TrimSpace(category))
		normalized[key] = append(normalized[key], urls...)
	}
	return &Source{
		fetcher: NewFetcher(timeout, userAgent),
		parser:  NewParser(),
		feeds:   normalized,
		items:   make(map[string][]newsapi.Article),
	}
}

func (s *Source) TopHeadlines(ctx context.Context, country, category string, pageSize int) ([]newsapi.Article, error) {
	key := strings.ToLower(category)
	if key == "" {
		key = GeneralCategory
	}
	return s.collect(ctx, s.feeds[key], nil, pageSize)
}

// Everything searches every configured feed. An item matches when any
// query term occurs in its title or description.
func (s *Source) Everything(ctx context.Context, query, language string, pageSize int) ([]newsapi.Article, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []newsapi.Article{}, nil
	}
	match := func(a newsapi.Article) bool {
		text := strings.ToLower(a.Title + " " + a.Description)
		for _, term := range terms {
			if strings.Contains(text, term) {
				return true
			}
		}
		return false
	}
	return s.collect(ctx, s.allURLs(), match, pageSize)
}

func (s *Source) allURLs() []string {
	seen := make(map[string]struct{})
	var urls []string
	keys := make([]string, 0, len(s.feeds))
	for k := range s.feeds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, u := range s.feeds[k] {
			if _, ok := seen[u]; !ok {
				seen[u] = struct{}{}
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// collect loads every url, keeps items accepted by match, and returns the
// newest pageSize of them. A failing feed is skipped; the error is returned
// only when every feed failed.
func (s *Source) collect(ctx context.Context, urls []string, match func(newsapi.Article) bool, pageSize int) ([]newsapi.Article, error) {
	out := make([]newsapi.Article, 0)
	seen := make(map[string]struct{})
	var firstErr error
	failed := 0

	for _, url := range urls {
		items, err := s.load(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil || newsapi.IsRateLimited(err) {
				firstErr = err
			}
			failed++
			continue
		}
		for _, item := range items {
			if match != nil && !match(item) {
				continue
			}
			key := item.URL
			if key == "" {
				key = item.Title
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, item)
		}
	}

	if len(urls) > 0 && failed == len(urls) {
		return nil, firstErr
	}

	// RFC3339 UTC timestamps order lexically
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt > out[j].PublishedAt
	})
	if pageSize > 0 && len(out) > pageSize {
		out = out[:pageSize]
	}
	return out, nil
}

// load returns the items of one feed, reusing the last parse when the
// server reports the feed unchanged.
func (s *Source) load(ctx context.Context, url string) ([]newsapi.Article, error) {
	resp, updated, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if !updated {
		s.mu.Lock()
		items, ok := s.items[url]
		s.mu.Unlock()
		if ok {
			return items, nil
		}
		// no parse to reuse; fetch unconditionally once
		s.fetcher.forget(url)
		if resp, updated, err = s.fetcher.Fetch(ctx, url); err != nil {
			return nil, err
		}
		if !updated {
			return []newsapi.Article{}, nil
		}
	}
	defer resp.Body.Close()

	items, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.items[url] = items
	s.mu.Unlock()
	return items, nil
}
