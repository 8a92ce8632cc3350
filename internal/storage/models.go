package storage

import (
	"time"
)

type Article struct {
	ID           int64    `json:"id"`
	Category     string   `json:"category"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Source       string   `json:"source"`
	PublishedAt  string   `json:"published_at"`
	AccentColor  string   `json:"accent_color"`
	HeroImageURL string   `json:"hero_image_url,omitempty"`
	Tag          string   `json:"tag"`
	IsFeatured   bool     `json:"is_featured"`
	Content      []string `json:"content"`
	URL          string   `json:"url,omitempty"`
}

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// NewsData is a complete fetch snapshot. Values are never mutated after
// construction; a new snapshot replaces the old one.
type NewsData struct {
	Categories         []Category `json:"categories"`
	FeaturedArticles   []Article  `json:"featured_articles"`
	Articles           []Article  `json:"articles"`
	BookmarkedArticles []Article  `json:"bookmarked_articles"`
	SearchSuggestions  []string   `json:"search_suggestions"`
}

type Bookmark struct {
	ArticleID int64     `json:"article_id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// cachedArticle is the persisted envelope around an Article.
type cachedArticle struct {
	Article
	Batch    string    `json:"batch"`
	CachedAt time.Time `json:"cached_at"`
}

// DefaultCategories is the static category set shown when no category
// list comes from the API.
func DefaultCategories() []Category {
	return []Category{
		{ID: 0, Name: "All"},
		{ID: 1, Name: "Top"},
		{ID: 2, Name: "Business"},
		{ID: 3, Name: "Technology"},
		{ID: 4, Name: "Sports"},
		{ID: 5, Name: "Entertainment"},
		{ID: 6, Name: "Health"},
		{ID: 7, Name: "Science"},
	}
}
