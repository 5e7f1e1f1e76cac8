package search

import (
	"strings"

	"github.com/cairnstack/cairn/entity"
)

// Relevance score tiers: exact name match outranks prefix, prefix
// outranks substring, and keyword/content hits add on top.
const (
	exactMatchScore  = 100
	prefixMatchScore = 50
	containsScore    = 25
	keywordScore     = 15
	contentScore     = 10
)

// Score ranks an entity against a query. Higher is more relevant.
func Score(query string, e *entity.Entity) int {
	q := strings.ToLower(strings.TrimSpace(query))
	name := strings.ToLower(e.Name)

	score := 0
	switch {
	case name == q:
		score += exactMatchScore
	case strings.HasPrefix(name, q):
		score += prefixMatchScore
	case strings.Contains(name, q):
		score += containsScore
	}

	for _, kw := range e.Metadata.Keywords {
		if strings.Contains(strings.ToLower(kw), q) {
			score += keywordScore
			break
		}
	}
	for _, tag := range e.Metadata.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			score += keywordScore
			break
		}
	}

	if strings.Contains(strings.ToLower(e.Content), q) ||
		strings.Contains(strings.ToLower(e.SearchText), q) {
		score += contentScore
	}

	return score
}
