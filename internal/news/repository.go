package news

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pders01/dispatch/internal/config"
	"github.com/pders01/dispatch/internal/debuglog"
	"github.com/pders01/dispatch/internal/newsapi"
	"github.com/pders01/dispatch/internal/search"
	"github.com/pders01/dispatch/internal/storage"
)

var (
	// ErrNoArticles is returned when every fetch strategy came back empty.
	ErrNoArticles = errors.New("no articles available")
	// ErrCacheEmpty is returned when the persistent cache has nothing to
	// fall back on.
	ErrCacheEmpty = errors.New("article cache is empty")
)

// settings key holding the unix-millis time of the last multi-category fetch
const keyMultiCategoryFetch = "multi_category_last_fetch"

// persistTimeout bounds one background cache write.
const persistTimeout = 30 * time.Second

// RemoteSource is the headline/search API.
type RemoteSource interface {
	TopHeadlines(ctx context.Context, country, category string, pageSize int) ([]newsapi.Article, error)
	Everything(ctx context.Context, query, language string, pageSize int) ([]newsapi.Article, error)
}

// ArticleCache is the persistent article cache. ArticleByID returns
// storage.ErrNotFound for unknown ids.
type ArticleCache interface {
	CacheArticles(ctx context.Context, articles []storage.Article, batchLabel string) error
	RecentArticles(ctx context.Context, limit int) ([]storage.Article, error)
	ArticlesByCategory(ctx context.Context, category string) ([]storage.Article, error)
	ArticlesByIDs(ctx context.Context, ids []int64) ([]storage.Article, error)
	ArticleByID(ctx context.Context, id int64) (*storage.Article, error)
}

// BookmarkStore holds the authoritative bookmark ids of one user.
type BookmarkStore interface {
	LoadBookmarks(ctx context.Context) ([]int64, error)
	AddBookmark(ctx context.Context, id int64, title, category string) error
	RemoveBookmark(ctx context.Context, id int64) error
}

// SettingsStore is a synchronous key/value store.
type SettingsStore interface {
	Int64(key string) (int64, bool)
	SetInt64(key string, value int64) error
	Delete(key string) error
}

type Deps struct {
	Source    RemoteSource
	Cache     ArticleCache
	Bookmarks BookmarkStore
	Settings  SettingsStore
	// Listener, when set, receives every batch written to the cache.
	Listener search.UpdateListener
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type Options struct {
	Country          string
	SecondaryCountry string
	FallbackQuery    string
	Language         string
	PageSize         int
	FeaturedCount    int
	RecentLimit      int
	CacheTTL         time.Duration
	// Accent maps a category name to its accent color.
	Accent func(category string) string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Country:          cfg.News.Country,
		SecondaryCountry: cfg.News.SecondaryCountry,
		FallbackQuery:    cfg.News.FallbackQuery,
		Language:         cfg.API.Language,
		PageSize:         cfg.API.PageSize,
		FeaturedCount:    cfg.News.FeaturedCount,
		RecentLimit:      cfg.News.RecentLimit,
		CacheTTL:         cfg.News.CacheTTL,
		Accent:           cfg.UI.Accent,
	}
}

type articleIndex map[int64]storage.Article

// Repository reconciles the remote source, the persistent cache, the
// in-memory index and the bookmark set. One instance serves one process.
//
// Readers load the index, bookmark set and snapshot through atomic
// pointers; writers build a new value and swap it while holding mu.
type Repository struct {
	source    RemoteSource
	cache     ArticleCache
	bookmarks BookmarkStore
	settings  SettingsStore
	listener  search.UpdateListener
	opts      Options
	now       func() time.Time
	engine    *search.Engine
	log       *debuglog.FieldLogger

	mu          sync.Mutex
	data        atomic.Pointer[storage.NewsData]
	index       atomic.Pointer[articleIndex]
	bookmarkIDs atomic.Pointer[idSet]
	synced      atomic.Bool // bookmarkIDs reflects the store
	multi       []storage.Article // guarded by mu

	pending sync.WaitGroup
}

func NewRepository(deps Deps, opts Options) *Repository {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if opts.Accent == nil {
		opts.Accent = func(string) string { return "" }
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 50
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}

	r := &Repository{
		source:    deps.Source,
		cache:     deps.Cache,
		bookmarks: deps.Bookmarks,
		settings:  deps.Settings,
		listener:  deps.Listener,
		opts:      opts,
		now:       deps.Clock,
		engine:    search.NewEngine(),
		log:       debuglog.WithFields(map[string]interface{}{"component": "news"}),
	}
	r.index.Store(&articleIndex{})
	r.bookmarkIDs.Store(newIDSet(nil))
	return r
}

// Close waits for background cache writes to finish.
func (r *Repository) Close() {
	r.pending.Wait()
}

// InvalidateCache drops all in-memory state and the multi-category TTL
// stamp so the next read fetches fresh data.
func (r *Repository) InvalidateCache() {
	r.mu.Lock()
	r.data.Store(nil)
	r.index.Store(&articleIndex{})
	r.bookmarkIDs.Store(newIDSet(nil))
	r.synced.Store(false)
	r.multi = nil
	r.mu.Unlock()

	if err := r.settings.Delete(keyMultiCategoryFetch); err != nil {
		r.log.Warnf("clearing multi-category timestamp: %v", err)
	}
}

// Refresh invalidates everything and loads a fresh snapshot.
func (r *Repository) Refresh(ctx context.Context) (*storage.NewsData, error) {
	r.InvalidateCache()
	return r.NewsData(ctx)
}

func (r *Repository) lookup(id int64) (storage.Article, bool) {
	a, ok := (*r.index.Load())[id]
	return a, ok
}

func (r *Repository) indexLen() int {
	return len(*r.index.Load())
}

// mergeIndex inserts or overwrites articles by id. Existing entries are
// never removed.
func (r *Repository) mergeIndex(articles []storage.Article) {
	if len(articles) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.index.Load()
	next := make(articleIndex, len(current)+len(articles))
	for id, a := range current {
		next[id] = a
	}
	for _, a := range articles {
		next[a.ID] = a
	}
	r.index.Store(&next)
}

// persist writes articles to the cache in the background and notifies the
// listener once the write succeeded. Failures are logged only.
func (r *Repository) persist(articles []storage.Article, label string) {
	if len(articles) == 0 {
		return
	}
	batch := append([]storage.Article(nil), articles...)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := r.cache.CacheArticles(ctx, batch, label); err != nil {
			r.log.Warnf("caching %d articles under %q: %v", len(batch), label, err)
			return
		}
		if r.listener != nil {
			r.listener.OnArticlesUpdated(batch)
		}
	}()
}
