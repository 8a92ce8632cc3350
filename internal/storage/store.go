package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	articlesBucket  = []byte("articles")
	batchesBucket   = []byte("batches")
	bookmarksBucket = []byte("bookmarks")
	metaBucket      = []byte("metadata")
)

// ErrNotFound is returned by point lookups that find nothing.
var ErrNotFound = errors.New("not found")

// maxBatchIDs bounds the id list remembered per batch label.
const maxBatchIDs = 1000

// Store is the bbolt-backed persistent article cache. It also holds the
// per-user bookmark buckets and the settings key/value pairs.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

func NewStore(dbPath string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{articlesBucket, batchesBucket, bookmarksBucket, metaBucket} {
			if _, createErr := tx.CreateBucketIfNotExists(bucket); createErr != nil {
				return createErr
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CacheArticles upserts articles and records them under batchLabel.
func (s *Store) CacheArticles(ctx context.Context, articles []Article, batchLabel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(articles) == 0 {
		return nil
	}
	cachedAt := s.now()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(articlesBucket)
		ids := make([]int64, 0, len(articles))
		for _, article := range articles {
			data, err := json.Marshal(cachedArticle{Article: article, Batch: batchLabel, CachedAt: cachedAt})
			if err != nil {
				return err
			}
			if err := b.Put(itob(article.ID), data); err != nil {
				return err
			}
			ids = append(ids, article.ID)
		}
		if batchLabel == "" {
			return nil
		}
		return appendBatch(tx.Bucket(batchesBucket), batchLabel, ids)
	})
}

func appendBatch(b *bolt.Bucket, label string, ids []int64) error {
	var existing []int64
	if data := b.Get([]byte(label)); data != nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			existing = nil
		}
	}
	seen := make(map[int64]struct{}, len(existing)+len(ids))
	merged := make([]int64, 0, len(existing)+len(ids))
	for _, id := range append(existing, ids...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	if len(merged) > maxBatchIDs {
		merged = merged[len(merged)-maxBatchIDs:]
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return b.Put([]byte(label), data)
}

// RecentArticles returns up to limit articles, most recently cached first.
// A limit of zero or less returns everything.
func (s *Store) RecentArticles(ctx context.Context, limit int) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := s.scan(func(cachedArticle) bool { return true })
	if err != nil {
		return nil, err
	}
	return unwrap(entries, limit), nil
}

// ArticlesByCategory returns articles whose category matches (case-insensitive)
// or that were cached under a batch label equal to category.
func (s *Store) ArticlesByCategory(ctx context.Context, category string) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var inBatch map[int64]struct{}
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(batchesBucket).Get([]byte(category))
		if data == nil {
			return nil
		}
		var ids []int64
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("decoding batch %q: %w", category, err)
		}
		inBatch = make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			inBatch[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries, err := s.scan(func(a cachedArticle) bool {
		if _, ok := inBatch[a.ID]; ok {
			return true
		}
		return strings.EqualFold(a.Category, category) || a.Batch == category
	})
	if err != nil {
		return nil, err
	}
	return unwrap(entries, 0), nil
}

// ArticlesByIDs returns the articles found for ids, in the order given.
// Unknown ids are skipped.
func (s *Store) ArticlesByIDs(ctx context.Context, ids []int64) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	articles := make([]Article, 0, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(articlesBucket)
		for _, id := range ids {
			data := b.Get(itob(id))
			if data == nil {
				continue
			}
			var entry cachedArticle
			if err := json.Unmarshal(data, &entry); err != nil {
				continue
			}
			articles = append(articles, entry.Article)
		}
		return nil
	})
	return articles, err
}

// ArticleByID returns ErrNotFound when the id is not cached.
func (s *Store) ArticleByID(ctx context.Context, id int64) (*Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entry cachedArticle
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(articlesBucket).Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry.Article, nil
}

// Prune deletes articles cached before cutoff and drops them from batch
// lists. It returns the ids it deleted.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var deleted []int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		articles := tx.Bucket(articlesBucket)
		removed := make(map[int64]struct{})
		err := articles.ForEach(func(_ []byte, v []byte) error {
			var entry cachedArticle
			if err := json.Unmarshal(v, &entry); err != nil {
				return nil
			}
			if entry.CachedAt.Before(cutoff) {
				removed[entry.ID] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return err
		}
		// bbolt cursors skip entries when deleting mid-iteration
		for id := range removed {
			if err := articles.Delete(itob(id)); err != nil {
				return err
			}
		}
		for id := range removed {
			deleted = append(deleted, id)
		}
		if len(deleted) == 0 {
			return nil
		}

		batches := tx.Bucket(batchesBucket)
		updates := make(map[string][]int64)
		err = batches.ForEach(func(k, v []byte) error {
			var ids []int64
			if err := json.Unmarshal(v, &ids); err != nil {
				return nil
			}
			kept := ids[:0]
			for _, id := range ids {
				if _, gone := removed[id]; !gone {
					kept = append(kept, id)
				}
			}
			updates[string(k)] = kept
			return nil
		})
		if err != nil {
			return err
		}
		for label, ids := range updates {
			if len(ids) == 0 {
				if err := batches.Delete([]byte(label)); err != nil {
					return err
				}
				continue
			}
			data, err := json.Marshal(ids)
			if err != nil {
				return err
			}
			if err := batches.Put([]byte(label), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(deleted, func(i, j int) bool { return deleted[i] < deleted[j] })
	return deleted, nil
}

// Stats reports the number of cached articles and batch labels.
func (s *Store) Stats() (articles int, batches int, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		articles = tx.Bucket(articlesBucket).Stats().KeyN
		batches = tx.Bucket(batchesBucket).Stats().KeyN
		return nil
	})
	return articles, batches, err
}

func (s *Store) scan(keep func(cachedArticle) bool) ([]cachedArticle, error) {
	var entries []cachedArticle
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(articlesBucket).ForEach(func(_ []byte, v []byte) error {
			var entry cachedArticle
			if err := json.Unmarshal(v, &entry); err != nil {
				return nil
			}
			if keep(entry) {
				entries = append(entries, entry)
			}
			return nil
		})
	})
	return entries, err
}

// unwrap sorts newest-cached first (ties broken by id, descending) and
// strips the envelope.
func unwrap(entries []cachedArticle, limit int) []Article {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CachedAt.Equal(entries[j].CachedAt) {
			return entries[i].CachedAt.After(entries[j].CachedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	articles := make([]Article, len(entries))
	for i, e := range entries {
		articles[i] = e.Article
	}
	return articles
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
