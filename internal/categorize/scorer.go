package categorize

import "strings"

// Scorer rates how well a piece of content matches a keyword set. It exists
// as an interface so a stricter matching strategy (word-boundary, stemming)
// can replace the default without touching the categorizer.
type Scorer interface {
	Score(content string, keywords []string) float64
}

// KeywordScorer is the default Scorer: case-insensitive substring matching.
// A keyword that happens to be a substring of an unrelated word still counts;
// that imprecision is accepted behavior, not a bug.
type KeywordScorer struct{}

// Score returns the fraction of keywords found anywhere in content, in
// [0.0, 1.0]. An empty keyword set scores 0.0.
func (KeywordScorer) Score(content string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0.0
	}

	lower := strings.ToLower(content)
	found := 0
	for _, keyword := range keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			found++
		}
	}

	return float64(found) / float64(len(keywords))
}
