package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// BookmarkStore is a view of the bookmarks bucket scoped to one user.
type BookmarkStore struct {
	store  *Store
	userID string
}

// Bookmarks returns the bookmark store for userID. An empty userID maps
// to the "local" user.
func (s *Store) Bookmarks(userID string) *BookmarkStore {
	if userID == "" {
		userID = "local"
	}
	return &BookmarkStore{store: s, userID: userID}
}

func (b *BookmarkStore) UserID() string {
	return b.userID
}

// LoadBookmarks returns the bookmarked article ids, oldest bookmark first.
func (b *BookmarkStore) LoadBookmarks(ctx context.Context) ([]int64, error) {
	records, err := b.Records(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ArticleID
	}
	return ids, nil
}

// Records returns the full bookmark records, oldest first.
func (b *BookmarkStore) Records(ctx context.Context) ([]Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []Bookmark
	err := b.store.db.View(func(tx *bolt.Tx) error {
		user := tx.Bucket(bookmarksBucket).Bucket([]byte(b.userID))
		if user == nil {
			return nil
		}
		return user.ForEach(func(_ []byte, v []byte) error {
			var r Bookmark
			if err := json.Unmarshal(v, &r); err != nil {
				return nil
			}
			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading bookmarks for %s: %w", b.userID, err)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (b *BookmarkStore) AddBookmark(ctx context.Context, id int64, title, category string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record := Bookmark{
		ArticleID: id,
		Title:     title,
		Category:  category,
		CreatedAt: b.store.now(),
	}
	return b.store.db.Update(func(tx *bolt.Tx) error {
		user, err := tx.Bucket(bookmarksBucket).CreateBucketIfNotExists([]byte(b.userID))
		if err != nil {
			return err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return user.Put(itob(id), data)
	})
}

// RemoveBookmark is a no-op for ids that are not bookmarked.
func (b *BookmarkStore) RemoveBookmark(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.store.db.Update(func(tx *bolt.Tx) error {
		user := tx.Bucket(bookmarksBucket).Bucket([]byte(b.userID))
		if user == nil {
			return nil
		}
		return user.Delete(itob(id))
	})
}
