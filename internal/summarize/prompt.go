package summarize

import (
	"fmt"
	"strings"

	"dailytopic/internal/model"
)

// Prompt is the payload for one summarization call: system framing plus the
// combined article content.
type Prompt struct {
	System string
	User   string
}

// articleDelimiter separates articles in the combined content.
const articleDelimiter = "---"

// BuildPrompt assembles the prompt for one category batch. The combined
// content is truncated to contentBudget characters (runes, so multi-byte
// text is never split) before being embedded.
func BuildPrompt(category model.CategoryDefinition, articles []model.Article, contentBudget, maxSummaryLength int) Prompt {
	return Prompt{
		System: buildSystemPrompt(category, maxSummaryLength),
		User:   buildUserPrompt(category, articles, contentBudget, maxSummaryLength),
	}
}

// buildSystemPrompt creates the category-specific framing, including the
// literal JSON schema the response must follow.
func buildSystemPrompt(category model.CategoryDefinition, maxSummaryLength int) string {
	var b strings.Builder

	b.WriteString("あなたは技術記事の要約を専門とするAIアシスタントです。\n\n")
	b.WriteString(fmt.Sprintf("カテゴリ: %s (%s)\n", category.ID, category.Label))
	b.WriteString(fmt.Sprintf("関連キーワード: %s\n\n", strings.Join(category.Keywords, ", ")))

	b.WriteString("以下の要件に従って要約を生成してください：\n\n")
	b.WriteString(fmt.Sprintf("1. %d文字以内で要約を作成\n", maxSummaryLength))
	b.WriteString("2. 技術的な内容を正確に伝える\n")
	b.WriteString("3. 重要なポイントを3-5個抽出\n")
	b.WriteString("4. 信頼度（0.0-1.0）を評価\n")
	b.WriteString("5. 必ず以下のJSON形式で出力：\n\n")

	b.WriteString("{\n")
	b.WriteString(fmt.Sprintf("  \"category\": \"%s\",\n", category.ID))
	b.WriteString(fmt.Sprintf("  \"summary\": \"要約内容（%d文字以内）\",\n", maxSummaryLength))
	b.WriteString("  \"confidence\": 0.8,\n")
	b.WriteString("  \"key_points\": [\"ポイント1\", \"ポイント2\", \"ポイント3\"]\n")
	b.WriteString("}\n\n")

	b.WriteString("JSON以外の文字は出力しないでください。")

	return b.String()
}

// buildUserPrompt concatenates the batch content in order and wraps it with
// the summarization instruction.
func buildUserPrompt(category model.CategoryDefinition, articles []model.Article, contentBudget, maxSummaryLength int) string {
	content := combineArticles(articles)
	content = truncateRunes(content, contentBudget)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("以下の記事を%sカテゴリの観点から要約してください：\n\n", category.ID))
	b.WriteString(content)
	b.WriteString(fmt.Sprintf("\n\n上記の記事を%d文字以内で要約し、指定されたJSON形式で出力してください。", maxSummaryLength))
	return b.String()
}

// combineArticles joins title and body of each article with a deterministic
// delimiter, in batch order.
func combineArticles(articles []model.Article) string {
	parts := make([]string, 0, len(articles))
	for i, article := range articles {
		var b strings.Builder
		b.WriteString(fmt.Sprintf("## 記事 %d: %s\n", i+1, article.Title))
		b.WriteString(fmt.Sprintf("URL: %s\n", article.URL))
		b.WriteString(fmt.Sprintf("内容: %s\n", article.Body))
		b.WriteString(articleDelimiter)
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "\n\n")
}

// truncateRunes cuts s to at most max runes, appending "..." when truncated.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
