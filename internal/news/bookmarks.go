package news

import (
	"context"
	"fmt"

	"github.com/pders01/dispatch/internal/storage"
)

// idSet is an immutable, insertion-ordered set of article ids.
type idSet struct {
	order   []int64
	members map[int64]struct{}
}

func newIDSet(ids []int64) *idSet {
	s := &idSet{members: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		if _, ok := s.members[id]; ok {
			continue
		}
		s.members[id] = struct{}{}
		s.order = append(s.order, id)
	}
	return s
}

func (s *idSet) has(id int64) bool {
	_, ok := s.members[id]
	return ok
}

func (s *idSet) with(id int64) *idSet {
	if s.has(id) {
		return s
	}
	return newIDSet(append(append([]int64(nil), s.order...), id))
}

func (s *idSet) without(id int64) *idSet {
	if !s.has(id) {
		return s
	}
	ids := make([]int64, 0, len(s.order)-1)
	for _, v := range s.order {
		if v != id {
			ids = append(ids, v)
		}
	}
	return newIDSet(ids)
}

// syncBookmarks replaces the in-memory set with the store's ids.
func (r *Repository) syncBookmarks(ctx context.Context) ([]int64, error) {
	ids, err := r.bookmarks.LoadBookmarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading bookmarks: %w", err)
	}
	set := newIDSet(ids)
	r.mu.Lock()
	r.bookmarkIDs.Store(set)
	r.synced.Store(true)
	r.mu.Unlock()
	return set.order, nil
}

// publish indexes articles, syncs bookmarks and stores a new snapshot.
func (r *Repository) publish(ctx context.Context, articles []storage.Article) *storage.NewsData {
	r.mergeIndex(articles)
	if _, err := r.syncBookmarks(ctx); err != nil {
		r.log.Warnf("keeping previous bookmark set: %v", err)
	}

	data := buildNewsData(articles, r.projectBookmarks())
	r.data.Store(data)
	return data
}

// projectBookmarks resolves bookmarked ids through the index, skipping ids
// the index does not hold.
func (r *Repository) projectBookmarks() []storage.Article {
	index := *r.index.Load()
	set := r.bookmarkIDs.Load()
	out := make([]storage.Article, 0, len(set.order))
	for _, id := range set.order {
		if a, ok := index[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// refreshProjection swaps in a snapshot copy with an updated bookmark list.
func (r *Repository) refreshProjection() {
	for {
		current := r.data.Load()
		if current == nil {
			return
		}
		next := *current
		next.BookmarkedArticles = r.projectBookmarks()
		if r.data.CompareAndSwap(current, &next) {
			return
		}
	}
}

// Bookmarks returns the bookmarked articles in bookmark order. Ids missing
// from the index are looked up in the cache; ids found nowhere are skipped.
func (r *Repository) Bookmarks(ctx context.Context) ([]storage.Article, error) {
	ids, err := r.syncBookmarks(ctx)
	if err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := r.lookup(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		cached, err := r.cache.ArticlesByIDs(ctx, missing)
		if err != nil {
			r.log.Warnf("resolving %d bookmarks from cache: %v", len(missing), err)
		} else {
			r.mergeIndex(cached)
		}
	}

	r.refreshProjection()
	return r.projectBookmarks(), nil
}

// IsBookmarked reports membership in the in-memory bookmark set.
func (r *Repository) IsBookmarked(id int64) bool {
	return r.bookmarkIDs.Load().has(id)
}

// ToggleBookmark flips the bookmark state of id and returns the new state.
// Membership is decided against the store's set. The in-memory set changes
// first; if the store write fails the change is reverted and the error
// returned.
func (r *Repository) ToggleBookmark(ctx context.Context, id int64) (bool, error) {
	var title, category string
	if a, err := r.ArticleByID(ctx, id); err == nil {
		title, category = a.Title, a.Category
	}
	if !r.synced.Load() {
		if _, err := r.syncBookmarks(ctx); err != nil {
			return r.IsBookmarked(id), err
		}
	}
	adding := !r.IsBookmarked(id)

	r.setBookmarked(id, adding)

	var err error
	if adding {
		err = r.bookmarks.AddBookmark(ctx, id, title, category)
	} else {
		err = r.bookmarks.RemoveBookmark(ctx, id)
	}
	if err != nil {
		r.setBookmarked(id, !adding)
		return !adding, fmt.Errorf("updating bookmark %d: %w", id, err)
	}

	r.refreshProjection()
	return adding, nil
}

func (r *Repository) setBookmarked(id int64, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.bookmarkIDs.Load()
	if on {
		r.bookmarkIDs.Store(set.with(id))
	} else {
		r.bookmarkIDs.Store(set.without(id))
	}
}
