package search

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/pders01/dispatch/internal/storage"
)

// Result is a scored article match.
type Result struct {
	Article *storage.Article
	Score   float64
	Matches []Match
}

// Match represents where text was found
type Match struct {
	Field  string // "title" or "summary"
	Text   string
	Weight float64
}

// Engine filters an in-memory article list by query terms. It backs the
// offline search path where no index or network is available.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Search returns the articles whose title or summary contains at least one
// query term as a case-insensitive substring, best match first. Queries
// shorter than two characters match nothing. A limit of zero or less
// returns every match.
func (e *Engine) Search(articles []storage.Article, query string, limit int) []*Result {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return []*Result{}
	}

	results := make([]*Result, 0)
	for i := range articles {
		if result := e.searchArticle(&articles[i], terms); result != nil {
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results
}

// Filter is Search without the scoring detail.
func (e *Engine) Filter(articles []storage.Article, query string, limit int) []storage.Article {
	results := e.Search(articles, query, limit)
	out := make([]storage.Article, len(results))
	for i, r := range results {
		out[i] = *r.Article
	}
	return out
}

func (e *Engine) searchArticle(article *storage.Article, terms []string) *Result {
	var matches []Match
	var totalScore float64

	if titleScore := e.scoreField(article.Title, terms, 4.0); titleScore > 0 {
		matches = append(matches, Match{
			Field:  "title",
			Text:   article.Title,
			Weight: titleScore,
		})
		totalScore += titleScore
	}

	if summaryScore := e.scoreField(article.Summary, terms, 2.0); summaryScore > 0 {
		matches = append(matches, Match{
			Field:  "summary",
			Text:   truncate(article.Summary, 150),
			Weight: summaryScore,
		})
		totalScore += summaryScore
	}

	if totalScore > 0 {
		return &Result{
			Article: article,
			Score:   totalScore,
			Matches: matches,
		}
	}

	return nil
}

// scoreField is zero unless some term is a substring of text; word-level
// hits then raise the score.
func (e *Engine) scoreField(text string, terms []string, weight float64) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)

	var score float64
	matchedTerms := 0

	for _, term := range terms {
		if !strings.Contains(lower, term) {
			continue
		}
		score += 2.0
		matchedTerms++

		for _, word := range words {
			switch {
			case word == term:
				score += 1.5
			case strings.HasPrefix(word, term) || strings.HasSuffix(word, term):
				score += 1.0
			case strings.Contains(word, term):
				score += 0.5
			}
		}
	}

	if matchedTerms == 0 {
		return 0
	}

	if len(terms) > 1 && matchedTerms > 1 {
		score *= 1.0 + float64(matchedTerms)/float64(len(terms))
	}

	if len(words) > 0 {
		tf := float64(matchedTerms) / float64(len(words))
		score *= 1.0 + math.Log(1.0+tf)
	}

	return score * weight
}

// tokenize breaks text into lower-case terms, dropping single characters
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len(term) > 1 {
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if current.Len() > 1 {
		terms = append(terms, current.String())
	}

	return terms
}

// truncate limits text length with ellipsis
func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-1]) + "…"
}
