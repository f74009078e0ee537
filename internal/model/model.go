package model

import "time"

// Article represents one piece of fetched content. Articles are created by
// the content fetcher and are read-only afterwards.
type Article struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CategoryDefinition describes one topical bucket. Definitions are loaded at
// startup and immutable for the run. The overflow bucket has no keywords and
// is never matched by scoring.
type CategoryDefinition struct {
	ID        string   `json:"id" yaml:"id"`
	Label     string   `json:"label" yaml:"label"`
	Keywords  []string `json:"keywords" yaml:"keywords"`
	Threshold float64  `json:"threshold" yaml:"threshold"`
	Overflow  bool     `json:"overflow" yaml:"overflow"`
}

// Scorable reports whether the category participates in keyword scoring.
func (c CategoryDefinition) Scorable() bool {
	return !c.Overflow
}

// CategorizedBatch holds the articles assigned to one scorable category.
// Scores is aligned with Articles and carries each article's winning
// keyword-match score.
type CategorizedBatch struct {
	Category string    `json:"category"`
	Articles []Article `json:"articles"`
	Scores   []float64 `json:"scores"`
}

// SummaryResult is the outcome of summarizing one category batch. A fallback
// result is recognizable by Fallback=true, confidence 0 and no key points.
type SummaryResult struct {
	Category     string    `json:"category"`
	Summary      string    `json:"summary"`
	Confidence   float64   `json:"confidence"`
	KeyPoints    []string  `json:"key_points"`
	ArticleCount int       `json:"article_count"`
	ArticleURLs  []string  `json:"article_urls"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	Fallback     bool      `json:"fallback"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// UsageRecord holds the running token and cost totals for one run.
type UsageRecord struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	Calls        int     `json:"calls"`
}

// TotalTokens returns input plus output tokens.
func (u UsageRecord) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// DailyReport combines the per-category summaries, the uncategorized article
// list and the run statistics for posting.
type DailyReport struct {
	Date           time.Time       `json:"date"`
	Summaries      []SummaryResult `json:"summaries"`
	Uncategorized  []Article       `json:"uncategorized"`
	TotalArticles  int             `json:"total_articles"`
	Usage          UsageRecord     `json:"usage"`
	ProcessingTime time.Duration   `json:"processing_time"`
}
