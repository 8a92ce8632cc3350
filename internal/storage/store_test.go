package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	tmpDir, err := os.MkdirTemp("", "store-test-*")
	if err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	store, err := NewStore(dbPath, time.Second)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatal(err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

// fixedClock makes cache timestamps deterministic; each call advances one second.
func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func sampleArticles() []Article {
	return []Article{
		{ID: 101, Category: "Technology", Title: "Chips get faster", Summary: "Silicon news", Source: "Wire", Content: []string{"p1"}},
		{ID: 102, Category: "Technology", Title: "Breaking: new phone", Summary: "Launch event", Source: "Wire"},
		{ID: 103, Category: "Sports", Title: "Final score", Summary: "A close game", Source: "Sport Daily"},
	}
}

func TestStore_CacheAndGetArticle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.CacheArticles(ctx, sampleArticles(), "Feed"); err != nil {
		t.Fatalf("failed to cache articles: %v", err)
	}

	article, err := store.ArticleByID(ctx, 101)
	if err != nil {
		t.Fatalf("failed to get article: %v", err)
	}
	if article.Title != "Chips get faster" {
		t.Errorf("expected title %q, got %q", "Chips get faster", article.Title)
	}
	if len(article.Content) != 1 || article.Content[0] != "p1" {
		t.Errorf("expected content to round-trip, got %v", article.Content)
	}
}

func TestStore_ArticleByID_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.ArticleByID(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_RecentArticles(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	store.now = fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if err := store.CacheArticles(ctx, sampleArticles()[:2], "Feed"); err != nil {
		t.Fatalf("failed to cache first batch: %v", err)
	}
	if err := store.CacheArticles(ctx, sampleArticles()[2:], "Feed"); err != nil {
		t.Fatalf("failed to cache second batch: %v", err)
	}

	recent, err := store.RecentArticles(ctx, 10)
	if err != nil {
		t.Fatalf("failed to get recent articles: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(recent))
	}
	// newest batch first, then id descending within a batch
	want := []int64{103, 102, 101}
	for i, id := range want {
		if recent[i].ID != id {
			t.Errorf("position %d: expected id %d, got %d", i, id, recent[i].ID)
		}
	}

	limited, err := store.RecentArticles(ctx, 2)
	if err != nil {
		t.Fatalf("failed to get limited articles: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 articles with limit, got %d", len(limited))
	}
}

func TestStore_ArticlesByCategory(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.CacheArticles(ctx, sampleArticles(), "Feed"); err != nil {
		t.Fatalf("failed to cache articles: %v", err)
	}
	search := []Article{{ID: 201, Category: "Search", Title: "Result"}}
	if err := store.CacheArticles(ctx, search, "Search-result"); err != nil {
		t.Fatalf("failed to cache search batch: %v", err)
	}

	tech, err := store.ArticlesByCategory(ctx, "technology")
	if err != nil {
		t.Fatalf("failed to get category: %v", err)
	}
	if len(tech) != 2 {
		t.Errorf("expected 2 technology articles, got %d", len(tech))
	}

	byLabel, err := store.ArticlesByCategory(ctx, "Search-result")
	if err != nil {
		t.Fatalf("failed to get batch: %v", err)
	}
	if len(byLabel) != 1 || byLabel[0].ID != 201 {
		t.Errorf("expected search batch article 201, got %v", byLabel)
	}

	// re-caching under another label keeps the old batch membership
	if err := store.CacheArticles(ctx, sampleArticles()[:1], "Search-chips"); err != nil {
		t.Fatalf("failed to re-cache: %v", err)
	}
	feed, err := store.ArticlesByCategory(ctx, "Feed")
	if err != nil {
		t.Fatalf("failed to get feed batch: %v", err)
	}
	if len(feed) != 3 {
		t.Errorf("expected 3 articles in Feed batch, got %d", len(feed))
	}
}

func TestStore_ArticlesByIDs(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.CacheArticles(ctx, sampleArticles(), "Feed"); err != nil {
		t.Fatalf("failed to cache articles: %v", err)
	}

	got, err := store.ArticlesByIDs(ctx, []int64{103, 999, 101})
	if err != nil {
		t.Fatalf("failed to get by ids: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	if got[0].ID != 103 || got[1].ID != 101 {
		t.Errorf("expected order [103 101], got [%d %d]", got[0].ID, got[1].ID)
	}
}

func TestStore_Prune(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = fixedClock(start)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		a := Article{ID: int64(i + 1), Category: "Top", Title: fmt.Sprintf("Article %d", i)}
		if err := store.CacheArticles(ctx, []Article{a}, "Feed"); err != nil {
			t.Fatalf("failed to cache article: %v", err)
		}
	}

	// articles 1 and 2 were cached at start+1s and start+2s
	deleted, err := store.Prune(ctx, start.Add(2500*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if len(deleted) != 2 || deleted[0] != 1 || deleted[1] != 2 {
		t.Errorf("expected pruned ids [1 2], got %v", deleted)
	}

	remaining, err := store.ArticlesByCategory(ctx, "Feed")
	if err != nil {
		t.Fatalf("failed to list feed batch: %v", err)
	}
	if len(remaining) != 3 {
		t.Errorf("expected 3 remaining articles, got %d", len(remaining))
	}

	count, batches, err := store.Stats()
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	if count != 3 || batches != 1 {
		t.Errorf("expected 3 articles in 1 batch, got %d in %d", count, batches)
	}
}

func TestStore_CacheArticles_CancelledContext(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.CacheArticles(ctx, sampleArticles(), "Feed"); err == nil {
		t.Error("expected error for cancelled context, got nil")
	}
}

func TestBookmarkStore_AddLoadRemove(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	store.now = fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	alice := store.Bookmarks("alice")
	bob := store.Bookmarks("bob")

	if err := alice.AddBookmark(ctx, 7, "Seven", "Top"); err != nil {
		t.Fatalf("failed to add bookmark: %v", err)
	}
	if err := alice.AddBookmark(ctx, 3, "Three", "Sports"); err != nil {
		t.Fatalf("failed to add bookmark: %v", err)
	}

	ids, err := alice.LoadBookmarks(ctx)
	if err != nil {
		t.Fatalf("failed to load bookmarks: %v", err)
	}
	if len(ids) != 2 || ids[0] != 7 || ids[1] != 3 {
		t.Errorf("expected [7 3] in insertion order, got %v", ids)
	}

	other, err := bob.LoadBookmarks(ctx)
	if err != nil {
		t.Fatalf("failed to load bookmarks: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no bookmarks for bob, got %v", other)
	}

	records, err := alice.Records(ctx)
	if err != nil {
		t.Fatalf("failed to load records: %v", err)
	}
	if records[1].Title != "Three" || records[1].Category != "Sports" {
		t.Errorf("unexpected record metadata: %+v", records[1])
	}

	if err := alice.RemoveBookmark(ctx, 7); err != nil {
		t.Fatalf("failed to remove bookmark: %v", err)
	}
	if err := bob.RemoveBookmark(ctx, 7); err != nil {
		t.Fatalf("removing from empty user should not fail: %v", err)
	}

	ids, err = alice.LoadBookmarks(ctx)
	if err != nil {
		t.Fatalf("failed to load bookmarks: %v", err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Errorf("expected [3] after removal, got %v", ids)
	}
}

func TestBookmarkStore_DefaultUser(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	if got := store.Bookmarks("").UserID(); got != "local" {
		t.Errorf("expected default user %q, got %q", "local", got)
	}
}

func TestStore_Settings(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	if _, ok := store.Int64("missing"); ok {
		t.Error("expected missing key to report not found")
	}

	if err := store.SetInt64("last_fetch", 1735689600000); err != nil {
		t.Fatalf("failed to set setting: %v", err)
	}
	v, ok := store.Int64("last_fetch")
	if !ok || v != 1735689600000 {
		t.Errorf("expected 1735689600000, got %d (found=%v)", v, ok)
	}

	if err := store.Delete("last_fetch"); err != nil {
		t.Fatalf("failed to delete setting: %v", err)
	}
	if _, ok := store.Int64("last_fetch"); ok {
		t.Error("expected deleted key to report not found")
	}
}
