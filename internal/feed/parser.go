package feed

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pders01/dispatch/internal/newsapi"
)

type Parser struct {
	parser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
	}
}

// Parse reads an RSS, Atom or JSON feed and maps its items to the same
// article shape the news API returns.
func (p *Parser) Parse(reader io.Reader) ([]newsapi.Article, error) {
	feed, err := p.parser.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	articles := make([]newsapi.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		var a newsapi.Article
		a.Source.Name = strings.TrimSpace(feed.Title)
		a.Title = strings.TrimSpace(stripTags(item.Title))
		a.Description = stripTags(item.Description)
		a.Content = stripTags(item.Content)
		a.URL = item.Link
		a.URLToImage = imageURL(item)
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			a.Author = item.Authors[0].Name
		}

		switch {
		case item.PublishedParsed != nil:
			a.PublishedAt = item.PublishedParsed.UTC().Format(time.RFC3339)
		case item.UpdatedParsed != nil:
			a.PublishedAt = item.UpdatedParsed.UTC().Format(time.RFC3339)
		}

		articles = append(articles, a)
	}

	return articles, nil
}

func imageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enclosure := range item.Enclosures {
		if enclosure.URL != "" && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}
	if m := imgRegex.FindStringSubmatch(item.Content + " " + item.Description); len(m) > 1 {
		return m[1]
	}
	return ""
}

var (
	imgRegex   = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
	blockRegex = regexp.MustCompile(`(?i)</?(p|br|div|li|h[1-6])[^>]*>`)
	tagRegex   = regexp.MustCompile(`<[^>]*>`)
	spaceRegex = regexp.MustCompile(`[ \t]+`)
)

// stripTags reduces feed HTML to plain text, turning block elements into
// line breaks.
func stripTags(s string) string {
	if s == "" {
		return ""
	}
	s = blockRegex.ReplaceAllString(s, "\n")
	s = tagRegex.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRegex.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
