package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/pders01/dispatch/internal/debuglog"
	"github.com/pders01/dispatch/internal/storage"
)

// Index is a Bleve full-text index over cached articles.
type Index struct {
	idx bleve.Index
}

// OpenIndex opens the index at indexPath, creating it when missing.
func OpenIndex(indexPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating index: %w", err)
		}
	}
	return &Index{idx: idx}, nil
}

// NewMemIndex returns an index that lives only in memory.
func NewMemIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx}, nil
}

func (b *Index) Close() error {
	return b.idx.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	summary := bleve.NewTextFieldMapping()
	summary.Analyzer = standard.Name
	summary.Store = true

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = false

	stored := func() *mapping.FieldMapping {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = standard.Name
		f.Store = true
		return f
	}

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("summary", summary)
	dm.AddFieldMappingsAt("content", content)
	dm.AddFieldMappingsAt("category", stored())
	dm.AddFieldMappingsAt("source", stored())
	dm.AddFieldMappingsAt("url", stored())
	dm.AddFieldMappingsAt("published_at", stored())

	im.DefaultMapping = dm
	return im
}

// OnArticlesUpdated indexes the given articles, replacing earlier versions.
func (b *Index) OnArticlesUpdated(articles []storage.Article) {
	if err := b.Reindex(articles); err != nil {
		debuglog.Warnf("indexing %d articles: %v", len(articles), err)
	}
}

// Remove deletes the documents for ids; unknown ids are ignored.
func (b *Index) Remove(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	batch := b.idx.NewBatch()
	for _, id := range ids {
		batch.Delete(docIDForArticle(id))
	}
	return b.idx.Batch(batch)
}

// Reindex adds or replaces the documents for articles in one batch.
func (b *Index) Reindex(articles []storage.Article) error {
	batch := b.idx.NewBatch()
	for _, a := range articles {
		if err := batch.Index(docIDForArticle(a.ID), map[string]any{
			"title":        a.Title,
			"summary":      a.Summary,
			"content":      strings.Join(a.Content, "\n"),
			"category":     a.Category,
			"source":       a.Source,
			"url":          a.URL,
			"published_at": a.PublishedAt,
		}); err != nil {
			return err
		}
	}
	return b.idx.Batch(batch)
}

// Search runs an OR of per-term matches, boosting title over summary over
// content. Returned articles carry only the stored fields.
func (b *Index) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}
	var qs []bleveQuery.Query
	for _, tok := range tokenize(query) {
		qt := bleve.NewMatchQuery(tok)
		qt.SetField("title")
		qt.SetBoost(4.0)
		qs = append(qs, qt)
		qtp := bleve.NewPrefixQuery(tok)
		qtp.SetField("title")
		qtp.SetBoost(3.5)
		qs = append(qs, qtp)

		qs2 := bleve.NewMatchQuery(tok)
		qs2.SetField("summary")
		qs2.SetBoost(2.0)
		qs = append(qs, qs2)

		qc := bleve.NewMatchQuery(tok)
		qc.SetField("content")
		qc.SetBoost(1.0)
		qs = append(qs, qc)
	}
	if len(qs) == 0 {
		return []*Result{}, nil
	}

	if limit <= 0 {
		limit = 20
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	req.Fields = []string{"title", "summary", "category", "source", "url", "published_at"}
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(strings.TrimPrefix(h.ID, "article:"), 10, 64)
		if err != nil {
			continue
		}
		a := &storage.Article{ID: id}
		a.Title, _ = h.Fields["title"].(string)
		a.Summary, _ = h.Fields["summary"].(string)
		a.Category, _ = h.Fields["category"].(string)
		a.Source, _ = h.Fields["source"].(string)
		a.URL, _ = h.Fields["url"].(string)
		a.PublishedAt, _ = h.Fields["published_at"].(string)
		out = append(out, &Result{Article: a, Score: h.Score})
	}
	return out, nil
}

// DocCount reports total documents in the index.
func (b *Index) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	return int(n), err
}

func docIDForArticle(id int64) string { return "article:" + strconv.FormatInt(id, 10) }
