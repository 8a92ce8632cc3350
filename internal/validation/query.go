package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxQueryLength is the longest search phrase the news API accepts.
const MaxQueryLength = 500

// NormalizeQuery trims and collapses whitespace in a search phrase. An
// empty result is valid and means "nothing to search for".
func NormalizeQuery(q string) (string, error) {
	for _, r := range q {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return "", fmt.Errorf("query contains control characters")
		}
	}
	q = strings.Join(strings.Fields(q), " ")
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return "", fmt.Errorf("query too long (max %d characters)", MaxQueryLength)
	}
	return q, nil
}
