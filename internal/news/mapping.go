package news

import (
	"regexp"
	"strings"
	"time"

	"github.com/pders01/dispatch/internal/newsapi"
	"github.com/pders01/dispatch/internal/storage"
)

// aggregateCategories are fetched one page each for the multi-category feed.
var aggregateCategories = []string{"Business", "Technology", "Sports", "Entertainment", "Health"}

// apiCategories maps lower-case UI names to API category parameters.
// Anything absent here (All, Top, unknown names) uses the general feed.
var apiCategories = map[string]string{
	"business":      "business",
	"technology":    "technology",
	"tech":          "technology",
	"sports":        "sports",
	"entertainment": "entertainment",
	"health":        "health",
	"science":       "science",
}

var displayNames = map[string]string{
	"business":      "Business",
	"technology":    "Technology",
	"sports":        "Sports",
	"entertainment": "Entertainment",
	"health":        "Health",
	"science":       "Science",
}

const (
	generalCategory = "Top"
	searchCategory  = "Search"
	feedBatch       = "Feed"
	searchPrefix    = "Search-"
	removedTitle    = "[Removed]"
)

// idSpan leaves room for 1000 articles per fetch under one millisecond base.
const idSpan = 1000

var truncationMarker = regexp.MustCompile(`\s*\[\+\d+ chars\]\s*$`)

// APICategory returns the API category parameter for a UI category name.
// The empty string selects the general feed.
func APICategory(name string) string {
	return apiCategories[strings.ToLower(strings.TrimSpace(name))]
}

// DisplayCategory returns the canonical category label for a UI name.
func DisplayCategory(name string) string {
	if api := APICategory(name); api != "" {
		return displayNames[api]
	}
	return generalCategory
}

func baseID(t time.Time) int64 {
	return t.UnixMilli() * idSpan
}

// toArticles maps one fetched page. Article ids are base + offset + position,
// where position counts only kept articles; the first FeaturedCount of the
// page are featured.
func (r *Repository) toArticles(dtos []newsapi.Article, category string, base int64, offset int) []storage.Article {
	accent := r.opts.Accent(category)
	tag := strings.ToUpper(category)

	articles := make([]storage.Article, 0, len(dtos))
	for _, dto := range dtos {
		title := strings.TrimSpace(dto.Title)
		if title == "" || title == removedTitle {
			continue
		}

		content := paragraphs(dto.Content)
		summary := strings.TrimSpace(dto.Description)
		if summary == "" && len(content) > 0 {
			summary = content[0]
		}
		if len(content) == 0 && summary != "" {
			content = []string{summary}
		}

		pos := len(articles)
		articles = append(articles, storage.Article{
			ID:           base + int64(offset+pos),
			Category:     category,
			Title:        title,
			Summary:      summary,
			Source:       dto.Source.Name,
			PublishedAt:  dto.PublishedAt,
			AccentColor:  accent,
			HeroImageURL: dto.URLToImage,
			Tag:          tag,
			IsFeatured:   pos < r.opts.FeaturedCount,
			Content:      content,
			URL:          dto.URL,
		})
	}
	return articles
}

// paragraphs strips the API's "[+N chars]" truncation marker and splits the
// body on newlines.
func paragraphs(content string) []string {
	content = truncationMarker.ReplaceAllString(content, "")
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// withFeatured returns a copy of articles with only the first n featured.
func withFeatured(articles []storage.Article, n int) []storage.Article {
	out := make([]storage.Article, len(articles))
	for i, a := range articles {
		a.IsFeatured = i < n
		out[i] = a
	}
	return out
}

func buildNewsData(articles []storage.Article, bookmarked []storage.Article) *storage.NewsData {
	featured := make([]storage.Article, 0)
	for _, a := range articles {
		if a.IsFeatured {
			featured = append(featured, a)
		}
	}
	if bookmarked == nil {
		bookmarked = []storage.Article{}
	}
	return &storage.NewsData{
		Categories:         storage.DefaultCategories(),
		FeaturedArticles:   featured,
		Articles:           articles,
		BookmarkedArticles: bookmarked,
		SearchSuggestions:  suggestions(articles),
	}
}

const maxSuggestions = 8

// suggestions lists distinct sources in first-seen order.
func suggestions(articles []storage.Article) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, maxSuggestions)
	for _, a := range articles {
		if a.Source == "" {
			continue
		}
		if _, ok := seen[a.Source]; ok {
			continue
		}
		seen[a.Source] = struct{}{}
		out = append(out, a.Source)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
