package categorize

import (
	"log/slog"
	"sort"

	"dailytopic/internal/config"
	"dailytopic/internal/model"
)

// Categorizer assigns each article to exactly one category batch, or to the
// uncategorized list when no category clears its acceptance threshold.
type Categorizer struct {
	categories []model.CategoryDefinition
	scorer     Scorer
}

// New creates a Categorizer for the given category enumeration. The order of
// categories is significant: exact score ties are broken in favor of the
// earlier entry.
func New(categories []model.CategoryDefinition, scorer Scorer) (*Categorizer, error) {
	if err := config.ValidateCategories(categories); err != nil {
		return nil, err
	}
	if scorer == nil {
		scorer = KeywordScorer{}
	}
	return &Categorizer{categories: categories, scorer: scorer}, nil
}

// Categorize partitions articles into per-category batches plus an
// uncategorized list. Every input article lands in exactly one place.
func (c *Categorizer) Categorize(articles []model.Article) (map[string]*model.CategorizedBatch, []model.Article) {
	batches := make(map[string]*model.CategorizedBatch)
	var uncategorized []model.Article

	for _, article := range articles {
		text := classificationText(article)

		bestIdx := -1
		bestScore := 0.0
		for i, cat := range c.categories {
			if !cat.Scorable() {
				continue
			}
			score := c.scorer.Score(text, cat.Keywords)
			// Strict > keeps the earliest category on exact ties.
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		if bestIdx == -1 || bestScore < c.categories[bestIdx].Threshold {
			slog.Debug("article uncategorized", "url", article.URL, "best_score", bestScore)
			uncategorized = append(uncategorized, article)
			continue
		}

		winner := c.categories[bestIdx]
		batch, ok := batches[winner.ID]
		if !ok {
			batch = &model.CategorizedBatch{Category: winner.ID}
			batches[winner.ID] = batch
		}
		batch.Articles = append(batch.Articles, article)
		batch.Scores = append(batch.Scores, bestScore)

		slog.Debug("article categorized",
			"url", article.URL,
			"category", winner.ID,
			"score", bestScore,
		)
	}

	for id, batch := range batches {
		slog.Info("📄 カテゴリ分類結果", "category", id, "articles", len(batch.Articles))
	}
	if len(uncategorized) > 0 {
		slog.Info("📄 カテゴリ分類結果", "category", "uncategorized", "articles", len(uncategorized))
	}

	return batches, uncategorized
}

// LimitBatch caps a batch at max articles, keeping the highest-scoring ones.
// The relative order of kept articles is preserved.
func LimitBatch(batch *model.CategorizedBatch, max int) *model.CategorizedBatch {
	if max <= 0 || len(batch.Articles) <= max {
		return batch
	}

	idx := make([]int, len(batch.Articles))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return batch.Scores[idx[a]] > batch.Scores[idx[b]]
	})

	keep := make(map[int]bool, max)
	for _, i := range idx[:max] {
		keep[i] = true
	}

	limited := &model.CategorizedBatch{Category: batch.Category}
	for i := range batch.Articles {
		if keep[i] {
			limited.Articles = append(limited.Articles, batch.Articles[i])
			limited.Scores = append(limited.Scores, batch.Scores[i])
		}
	}

	slog.Info("カテゴリ記事数を制限", "category", batch.Category, "from", len(batch.Articles), "to", max)
	return limited
}

// classificationText builds the text the scorer sees: title plus body.
// The body is already length-bounded by the content fetcher.
func classificationText(article model.Article) string {
	if article.Title == "" {
		return article.Body
	}
	return article.Title + " " + article.Body
}
