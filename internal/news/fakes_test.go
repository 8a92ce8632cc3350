package news

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pders01/dispatch/internal/newsapi"
	"github.com/pders01/dispatch/internal/storage"
)

type fakeSource struct {
	mu             sync.Mutex
	headlines      func(country, category string) ([]newsapi.Article, error)
	everything     func(query string) ([]newsapi.Article, error)
	headlineCalls  int
	everythingCall int
}

func (f *fakeSource) TopHeadlines(ctx context.Context, country, category string, pageSize int) ([]newsapi.Article, error) {
	f.mu.Lock()
	f.headlineCalls++
	fn := f.headlines
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn == nil {
		return []newsapi.Article{}, nil
	}
	return fn(country, category)
}

func (f *fakeSource) Everything(ctx context.Context, query, language string, pageSize int) ([]newsapi.Article, error) {
	f.mu.Lock()
	f.everythingCall++
	fn := f.everything
	f.mu.Unlock()
	if fn == nil {
		return []newsapi.Article{}, nil
	}
	return fn(query)
}

func (f *fakeSource) calls() (headlines, everything int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headlineCalls, f.everythingCall
}

type fakeCache struct {
	mu       sync.Mutex
	articles map[int64]storage.Article
	order    []int64 // most recent last
	batches  map[string][]int64
	err      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{articles: map[int64]storage.Article{}, batches: map[string][]int64{}}
}

func (c *fakeCache) CacheArticles(ctx context.Context, articles []storage.Article, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for _, a := range articles {
		c.articles[a.ID] = a
		c.order = append(c.order, a.ID)
		c.batches[label] = append(c.batches[label], a.ID)
	}
	return nil
}

func (c *fakeCache) RecentArticles(ctx context.Context, limit int) ([]storage.Article, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	seen := map[int64]bool{}
	var out []storage.Article
	for i := len(c.order) - 1; i >= 0 && len(out) < limit; i-- {
		id := c.order[i]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, c.articles[id])
	}
	return out, nil
}

func (c *fakeCache) ArticlesByCategory(ctx context.Context, category string) ([]storage.Article, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	var out []storage.Article
	for _, a := range c.articles {
		if strings.EqualFold(a.Category, category) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (c *fakeCache) ArticlesByIDs(ctx context.Context, ids []int64) ([]storage.Article, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	var out []storage.Article
	for _, id := range ids {
		if a, ok := c.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (c *fakeCache) ArticleByID(ctx context.Context, id int64) (*storage.Article, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	a, ok := c.articles[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (c *fakeCache) batch(label string) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.batches[label]...)
}

type fakeBookmarks struct {
	mu      sync.Mutex
	ids     []int64
	err     error
	adds    int
	removes int
}

func (b *fakeBookmarks) LoadBookmarks(ctx context.Context) ([]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.ids...), nil
}

func (b *fakeBookmarks) AddBookmark(ctx context.Context, id int64, title, category string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.adds++
	for _, v := range b.ids {
		if v == id {
			return nil
		}
	}
	b.ids = append(b.ids, id)
	return nil
}

func (b *fakeBookmarks) RemoveBookmark(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.removes++
	kept := b.ids[:0]
	for _, v := range b.ids {
		if v != id {
			kept = append(kept, v)
		}
	}
	b.ids = kept
	return nil
}

func (b *fakeBookmarks) stored() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int64(nil), b.ids...)
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]int64
}

func (s *fakeSettings) Int64(key string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *fakeSettings) SetInt64(key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = map[string]int64{}
	}
	s.values[key] = value
	return nil
}

func (s *fakeSettings) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingListener struct {
	mu      sync.Mutex
	batches [][]storage.Article
}

func (l *recordingListener) OnArticlesUpdated(articles []storage.Article) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batches = append(l.batches, articles)
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.batches)
}

type testRepo struct {
	*Repository
	source    *fakeSource
	cache     *fakeCache
	bookmarks *fakeBookmarks
	settings  *fakeSettings
	clock     *fakeClock
	listener  *recordingListener
}

func testOptions() Options {
	return Options{
		Country:          "us",
		SecondaryCountry: "gb",
		FallbackQuery:    "news",
		Language:         "en",
		PageSize:         20,
		FeaturedCount:    5,
		RecentLimit:      50,
		CacheTTL:         30 * time.Minute,
		Accent: func(category string) string {
			return "#" + strings.ToLower(category)
		},
	}
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()
	tr := &testRepo{
		source:    &fakeSource{},
		cache:     newFakeCache(),
		bookmarks: &fakeBookmarks{},
		settings:  &fakeSettings{},
		clock:     &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		listener:  &recordingListener{},
	}
	tr.Repository = NewRepository(Deps{
		Source:    tr.source,
		Cache:     tr.cache,
		Bookmarks: tr.bookmarks,
		Settings:  tr.settings,
		Listener:  tr.listener,
		Clock:     tr.clock.Now,
	}, testOptions())
	t.Cleanup(tr.Close)
	return tr
}

// dtos builds n wire articles titled "<prefix> <i>".
func dtos(prefix string, n int) []newsapi.Article {
	out := make([]newsapi.Article, n)
	for i := range out {
		out[i].Title = fmt.Sprintf("%s %d", prefix, i)
		out[i].Description = fmt.Sprintf("About %s %d", prefix, i)
		out[i].Content = fmt.Sprintf("Body of %s %d [+120 chars]", prefix, i)
		out[i].Source.Name = "Wire"
		out[i].URL = fmt.Sprintf("https://example.com/%s/%d", prefix, i)
	}
	return out
}

func rateLimited() error {
	return &newsapi.HTTPError{StatusCode: http.StatusTooManyRequests, Path: "/top-headlines"}
}

func serverError() error {
	return &newsapi.HTTPError{StatusCode: http.StatusInternalServerError, Path: "/top-headlines"}
}

func ids(articles []storage.Article) []int64 {
	out := make([]int64, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}
