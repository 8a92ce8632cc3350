//go:build bleve

package search

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/dispatch/internal/debuglog"
	"github.com/pders01/dispatch/internal/storage"
)

func TestIndexIndexesAndSearches(t *testing.T) {
	dir := t.TempDir()
	idxPath := filepath.Join(dir, "index.bleve")

	idx, err := OpenIndex(idxPath)
	require.NoError(t, err)

	arts := []storage.Article{
		{ID: 1, Category: "Top", Title: "Hello World", Summary: "greeting article", URL: "https://news.example/1"},
		{ID: 2, Category: "Technology", Title: "Golang Tips", Summary: "bleve and search", Content: []string{"Using bleve for full text search"}},
	}
	idx.OnArticlesUpdated(arts)

	res, err := idx.Search("Golang", 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res), 1)
	assert.Equal(t, int64(2), res[0].Article.ID)
	assert.Equal(t, "Technology", res[0].Article.Category)

	res, err = idx.Search("greeting", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "https://news.example/1", res[0].Article.URL)

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, idx.Close())

	fi, err := os.Stat(idxPath)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	reopened, err := OpenIndex(idxPath)
	require.NoError(t, err)
	defer reopened.Close()
	count, err = reopened.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemIndexReplacesDocuments(t *testing.T) {
	idx, err := NewMemIndex()
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Reindex([]storage.Article{{ID: 9, Title: "Old headline"}}))
	require.NoError(t, idx.Reindex([]storage.Article{{ID: 9, Title: "Fresh headline"}}))

	res, err := idx.Search("fresh", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Fresh headline", res[0].Article.Title)

	res, err = idx.Search("x", 10)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestIndexRemoveDropsDocuments(t *testing.T) {
	idx, err := NewMemIndex()
	require.NoError(t, err)
	defer idx.Close()

	idx.OnArticlesUpdated([]storage.Article{
		{ID: 1, Title: "Harbor opens"},
		{ID: 2, Title: "Harbor closes"},
	})
	require.NoError(t, idx.Remove([]int64{1, 404}))
	require.NoError(t, idx.Remove(nil))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	res, err := idx.Search("harbor", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, int64(2), res[0].Article.ID)
}

func TestIndexLogsFailedUpdates(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "index.log")
	require.NoError(t, debuglog.Setup(debuglog.LevelWarn, logPath))
	defer debuglog.Close()

	idx, err := NewMemIndex()
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx.OnArticlesUpdated([]storage.Article{{ID: 1, Title: "Too late"}})
	require.NoError(t, debuglog.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "indexing 1 articles")
}
