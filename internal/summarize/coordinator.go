package summarize

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dailytopic/internal/model"
)

// TokenUsage is the token accounting a call reported, when it reported any.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// CallResult is the raw outcome of one LLM call. Usage is nil when the
// provider returned no usage block; the coordinator then counts zero.
type CallResult struct {
	Text  string
	Usage *TokenUsage
}

// Caller dispatches one prompt to the LLM collaborator. Retries, if any,
// belong to the implementation behind this interface.
type Caller interface {
	Complete(ctx context.Context, prompt Prompt) (*CallResult, error)
}

// Options tunes the coordinator. All values come from configuration.
type Options struct {
	ContentBudget      int
	MaxSummaryLength   int
	MaxConcurrent      int
	FallbackSummary    string
	CostPerInputToken  float64
	CostPerOutputToken float64
}

// Coordinator runs one summarization call per non-empty category batch.
// A failed or unusable call becomes a fallback result; it never aborts the
// run or touches another category's outcome.
type Coordinator struct {
	caller     Caller
	categories []model.CategoryDefinition
	opts       Options

	mu    sync.Mutex
	usage model.UsageRecord
}

// NewCoordinator creates a Coordinator over the given category enumeration.
// Results are emitted in enumeration order regardless of completion order.
func NewCoordinator(caller Caller, categories []model.CategoryDefinition, opts Options) *Coordinator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Coordinator{caller: caller, categories: categories, opts: opts}
}

// Usage returns a snapshot of the accumulated token and cost totals.
func (c *Coordinator) Usage() model.UsageRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// SummarizeAll produces one SummaryResult per category that has a non-empty
// batch, ordered by the category enumeration, plus the run's usage totals.
// Categories whose call is abandoned by context cancellation are absent from
// the output; callers must tolerate a partial sequence.
func (c *Coordinator) SummarizeAll(ctx context.Context, batches map[string]*model.CategorizedBatch) ([]model.SummaryResult, model.UsageRecord) {
	type job struct {
		category model.CategoryDefinition
		batch    *model.CategorizedBatch
	}

	var jobs []job
	for _, cat := range c.categories {
		if !cat.Scorable() {
			continue
		}
		batch, ok := batches[cat.ID]
		if !ok || len(batch.Articles) == 0 {
			continue
		}
		jobs = append(jobs, job{category: cat, batch: batch})
	}

	slog.Info("📡 要約生成開始", "categories", len(jobs))

	results := make([]*model.SummaryResult, len(jobs))
	semaphore := make(chan struct{}, c.opts.MaxConcurrent)
	var wg sync.WaitGroup

	for i, j := range jobs {
		wg.Add(1)
		go func(index int, j job) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				// Cancelled before dispatch: the category stays absent.
				return
			}

			result := c.summarizeCategory(ctx, j.category, j.batch)
			results[index] = result
		}(i, j)
	}

	wg.Wait()

	ordered := make([]model.SummaryResult, 0, len(jobs))
	for _, r := range results {
		if r != nil {
			ordered = append(ordered, *r)
		}
	}

	usage := c.Usage()
	slog.Info("📡 要約生成完了",
		"summaries", len(ordered),
		"total_tokens", usage.TotalTokens(),
		"total_cost_usd", usage.CostUSD,
	)

	return ordered, usage
}

// summarizeCategory runs the per-category state machine: build the prompt,
// dispatch the single call, parse the response, and emit either a decoded
// result or a fallback. It never returns an error.
func (c *Coordinator) summarizeCategory(ctx context.Context, category model.CategoryDefinition, batch *model.CategorizedBatch) *model.SummaryResult {
	prompt := BuildPrompt(category, batch.Articles, c.opts.ContentBudget, c.opts.MaxSummaryLength)

	call, err := c.caller.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("LLM呼び出しに失敗、フォールバック要約を使用", "category", category.ID, "error", err)
		return c.fallbackResult(category, batch)
	}

	cost := c.recordUsage(call.Usage)

	decoded, ok := decodeSummary(call.Text)
	if !ok {
		slog.Warn("応答の解析に失敗、フォールバック要約を使用", "category", category.ID)
		result := c.fallbackResult(category, batch)
		result.InputTokens, result.OutputTokens, result.CostUSD = usageFields(call.Usage, cost)
		return result
	}

	if decoded.Category != category.ID {
		slog.Warn("カテゴリ不一致を修正",
			"expected", category.ID,
			"got", decoded.Category,
		)
	}

	confidence := 0.7
	if decoded.Confidence != nil {
		confidence = clamp01(*decoded.Confidence)
	}
	keyPoints := decoded.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}

	result := &model.SummaryResult{
		Category:     category.ID,
		Summary:      truncateSummary(decoded.Summary, c.opts.MaxSummaryLength),
		Confidence:   confidence,
		KeyPoints:    keyPoints,
		ArticleCount: len(batch.Articles),
		ArticleURLs:  articleURLs(batch),
		GeneratedAt:  time.Now(),
	}
	result.InputTokens, result.OutputTokens, result.CostUSD = usageFields(call.Usage, cost)

	slog.Info("要約生成成功",
		"category", category.ID,
		"articles", result.ArticleCount,
		"tokens", result.InputTokens+result.OutputTokens,
		"cost_usd", result.CostUSD,
	)

	return result
}

// fallbackResult is the terminal state for a category whose call failed or
// returned unusable output. Confidence 0 and empty key points make degraded
// categories recognizable in the final report.
func (c *Coordinator) fallbackResult(category model.CategoryDefinition, batch *model.CategorizedBatch) *model.SummaryResult {
	return &model.SummaryResult{
		Category:     category.ID,
		Summary:      c.opts.FallbackSummary,
		Confidence:   0.0,
		KeyPoints:    []string{},
		ArticleCount: len(batch.Articles),
		ArticleURLs:  articleURLs(batch),
		Fallback:     true,
		GeneratedAt:  time.Now(),
	}
}

// recordUsage adds reported usage to the run totals and returns the cost of
// this call. Absent usage contributes zero.
func (c *Coordinator) recordUsage(usage *TokenUsage) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.usage.Calls++
	if usage == nil {
		return 0
	}
	cost := float64(usage.InputTokens)*c.opts.CostPerInputToken +
		float64(usage.OutputTokens)*c.opts.CostPerOutputToken
	c.usage.InputTokens += usage.InputTokens
	c.usage.OutputTokens += usage.OutputTokens
	c.usage.CostUSD += cost
	return cost
}

// decodedSummary is the expected response schema.
type decodedSummary struct {
	Category   string   `json:"category"`
	Summary    string   `json:"summary"`
	Confidence *float64 `json:"confidence"`
	KeyPoints  []string `json:"key_points"`
}

// decodeSummary parses the response text against the expected schema.
// Category and summary are required; confidence and key points are optional.
func decodeSummary(text string) (*decodedSummary, bool) {
	jsonStr, ok := extractJSON(text)
	if !ok {
		return nil, false
	}

	var decoded decodedSummary
	if err := json.Unmarshal([]byte(jsonStr), &decoded); err != nil {
		return nil, false
	}
	if decoded.Category == "" || decoded.Summary == "" {
		return nil, false
	}
	return &decoded, true
}

// extractJSON pulls the JSON object out of a response that may carry code
// fences or prose around it.
func extractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// truncateSummary enforces the maximum summary length. The result never
// exceeds max runes, ellipsis included.
func truncateSummary(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func usageFields(usage *TokenUsage, cost float64) (int, int, float64) {
	if usage == nil {
		return 0, 0, 0
	}
	return usage.InputTokens, usage.OutputTokens, cost
}

func articleURLs(batch *model.CategorizedBatch) []string {
	urls := make([]string, 0, len(batch.Articles))
	for _, a := range batch.Articles {
		urls = append(urls, a.URL)
	}
	return urls
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
