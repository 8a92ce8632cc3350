package news

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pders01/dispatch/internal/newsapi"
	"github.com/pders01/dispatch/internal/storage"
	"github.com/pders01/dispatch/internal/validation"
)

// strategy is one step of the feed fallback chain.
type strategy struct {
	name  string
	fetch func(ctx context.Context) ([]storage.Article, error)
}

func (r *Repository) feedStrategies(forceRefresh bool) []strategy {
	return []strategy{
		{"multi-category", func(ctx context.Context) ([]storage.Article, error) {
			return r.MultiCategoryArticles(ctx, r.opts.Country, forceRefresh)
		}},
		{"secondary-country", func(ctx context.Context) ([]storage.Article, error) {
			return r.ArticlesFromNetwork(ctx, "", r.opts.SecondaryCountry)
		}},
		{"keyword-search", func(ctx context.Context) ([]storage.Article, error) {
			return r.searchRemote(ctx, r.opts.FallbackQuery, generalCategory)
		}},
	}
}

// runStrategies returns the first non-empty result. An error stops the
// chain; an empty result moves on to the next strategy.
func (r *Repository) runStrategies(ctx context.Context, strategies []strategy) ([]storage.Article, error) {
	for _, s := range strategies {
		articles, err := s.fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		if len(articles) > 0 {
			r.log.Debugf("strategy %s returned %d articles", s.name, len(articles))
			return articles, nil
		}
		r.log.Debugf("strategy %s returned no articles", s.name)
	}
	return nil, nil
}

// NewsData returns the current snapshot, fetching one if none exists.
// A rate-limited fetch falls back to the persistent cache.
func (r *Repository) NewsData(ctx context.Context) (*storage.NewsData, error) {
	if data := r.data.Load(); data != nil {
		return data, nil
	}

	articles, err := r.runStrategies(ctx, r.feedStrategies(false))
	if err != nil {
		if newsapi.IsRateLimited(err) {
			r.log.Warnf("rate limited%s, serving cached articles: %v", retryHint(err), err)
			return r.loadFromCache(ctx)
		}
		return nil, fmt.Errorf("loading news: %w", err)
	}
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}

	data := r.publish(ctx, articles)
	r.persist(articles, feedBatch)
	return data, nil
}

// loadFromCache builds a snapshot from the most recently cached articles.
func (r *Repository) loadFromCache(ctx context.Context) (*storage.NewsData, error) {
	cached, err := r.cache.RecentArticles(ctx, r.opts.RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("loading cached articles: %w", err)
	}
	if len(cached) == 0 {
		return nil, ErrCacheEmpty
	}
	return r.publish(ctx, withFeatured(cached, r.opts.FeaturedCount)), nil
}

// MultiCategoryArticles fetches one page per aggregate category. Results
// younger than the cache TTL are served from memory unless forceRefresh is
// set. A failing category is skipped; only when every category was rate
// limited is the rate-limit error returned.
func (r *Repository) MultiCategoryArticles(ctx context.Context, country string, forceRefresh bool) ([]storage.Article, error) {
	now := r.now()

	if !forceRefresh {
		r.mu.Lock()
		cached := r.multi
		r.mu.Unlock()
		if last, ok := r.settings.Int64(keyMultiCategoryFetch); ok && len(cached) > 0 &&
			now.Sub(time.UnixMilli(last)) < r.opts.CacheTTL {
			return append([]storage.Article(nil), cached...), nil
		}
	}

	base := baseID(now)
	offset := 0
	all := make([]storage.Article, 0, len(aggregateCategories)*r.opts.PageSize)
	var rateErr error
	limited := 0

	for _, category := range aggregateCategories {
		page, err := r.fetchPage(ctx, category, country, base, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warnf("skipping category %s: %v", category, err)
			if newsapi.IsRateLimited(err) {
				rateErr = err
				limited++
			}
			continue
		}
		offset += len(page)
		all = append(all, page...)
	}

	if len(all) == 0 && limited == len(aggregateCategories) {
		return nil, rateErr
	}

	r.mu.Lock()
	r.multi = all
	r.mu.Unlock()
	if len(all) > 0 {
		if err := r.settings.SetInt64(keyMultiCategoryFetch, now.UnixMilli()); err != nil {
			r.log.Warnf("recording multi-category fetch time: %v", err)
		}
	}

	return append([]storage.Article(nil), all...), nil
}

// ArticlesFromNetwork fetches one headline page for category and country
// and merges it into the index.
func (r *Repository) ArticlesFromNetwork(ctx context.Context, category, country string) ([]storage.Article, error) {
	return r.fetchPage(ctx, category, country, baseID(r.now()), 0)
}

func (r *Repository) fetchPage(ctx context.Context, category, country string, base int64, offset int) ([]storage.Article, error) {
	label := DisplayCategory(category)
	dtos, err := r.source.TopHeadlines(ctx, country, APICategory(category), r.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching %s headlines: %w", label, err)
	}
	articles := r.toArticles(dtos, label, base, offset)
	r.mergeIndex(articles)
	return articles, nil
}

// SearchArticles runs a keyword search. Results are merged into the index
// and cached under "Search-<query>". When the API is rate limited the
// recent cached articles are filtered locally instead.
func (r *Repository) SearchArticles(ctx context.Context, query, category string) ([]storage.Article, error) {
	q, err := validation.NormalizeQuery(query)
	if err != nil {
		return nil, err
	}
	if q == "" {
		return []storage.Article{}, nil
	}

	label := searchCategory
	if category != "" && category != "All" {
		label = DisplayCategory(category)
	}

	articles, err := r.searchRemote(ctx, q, label)
	if err != nil {
		if newsapi.IsRateLimited(err) {
			r.log.Warnf("search rate limited%s, filtering cache for %q", retryHint(err), q)
			return r.searchCached(ctx, q)
		}
		return nil, err
	}

	r.persist(articles, searchPrefix+q)
	return articles, nil
}

func (r *Repository) searchRemote(ctx context.Context, query, label string) ([]storage.Article, error) {
	dtos, err := r.source.Everything(ctx, query, r.opts.Language, r.opts.PageSize)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}
	articles := r.toArticles(dtos, label, baseID(r.now()), 0)
	r.mergeIndex(articles)
	return articles, nil
}

func (r *Repository) searchCached(ctx context.Context, query string) ([]storage.Article, error) {
	recent, err := r.cache.RecentArticles(ctx, r.opts.RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("searching cached articles: %w", err)
	}
	matches := r.engine.Filter(recent, query, 0)
	r.mergeIndex(matches)
	return matches, nil
}

// ArticlesByCategory fetches one category from the network, falling back to
// cached articles of that category when rate limited.
func (r *Repository) ArticlesByCategory(ctx context.Context, category string) ([]storage.Article, error) {
	label := DisplayCategory(category)
	articles, err := r.ArticlesFromNetwork(ctx, category, r.opts.Country)
	if err == nil {
		r.persist(articles, label)
		return articles, nil
	}
	if !newsapi.IsRateLimited(err) {
		return nil, err
	}
	r.log.Warnf("%s rate limited%s, serving cached articles", label, retryHint(err))

	cached, cerr := r.cache.ArticlesByCategory(ctx, label)
	if cerr != nil {
		return nil, fmt.Errorf("loading cached %s articles: %w", label, cerr)
	}
	r.mergeIndex(cached)
	return cached, nil
}

// ArticleByID resolves an article from the index, loading the feed first
// when nothing has been loaded yet, then from the persistent cache.
func (r *Repository) ArticleByID(ctx context.Context, id int64) (*storage.Article, error) {
	if a, ok := r.lookup(id); ok {
		return &a, nil
	}

	if r.data.Load() == nil && r.indexLen() == 0 {
		if _, err := r.NewsData(ctx); err != nil {
			r.log.Warnf("loading feed for article %d: %v", id, err)
		} else if a, ok := r.lookup(id); ok {
			return &a, nil
		}
	}

	article, err := r.cache.ArticleByID(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("loading article %d: %w", id, err)
		}
		return nil, err
	}
	r.mergeIndex([]storage.Article{*article})
	return article, nil
}

// retryHint formats the upstream Retry-After hint for log lines.
func retryHint(err error) string {
	if d := newsapi.RetryAfterOf(err); d > 0 {
		return fmt.Sprintf(" (retry after %s)", d)
	}
	return ""
}
