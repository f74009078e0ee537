package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dailytopic/internal/categorize"
	"dailytopic/internal/config"
	"dailytopic/internal/model"
	"dailytopic/internal/report"
	"dailytopic/internal/slack"
)

// SlackGateway is the chat collaborator: the URL source channel and the
// digest destination.
type SlackGateway interface {
	FetchChannelMessages(ctx context.Context, channel string, oldest time.Time) ([]slack.Message, error)
	PostMessage(ctx context.Context, channel, text string) error
	PostError(ctx context.Context, channel, step string, runErr error) error
}

// ContentFetcher turns URLs into articles. Unfetchable URLs are skipped.
type ContentFetcher interface {
	FetchAll(ctx context.Context, urls []string) []model.Article
}

// Summarizer produces category summaries and the run's usage totals.
type Summarizer interface {
	SummarizeAll(ctx context.Context, batches map[string]*model.CategorizedBatch) ([]model.SummaryResult, model.UsageRecord)
}

// StatsRecorder persists run statistics. It must never fail the run.
type StatsRecorder interface {
	Record(ctx context.Context, report *model.DailyReport)
}

// Pipeline is the single-pass daily run: channel URLs in, digest out.
type Pipeline struct {
	cfg         *config.Config
	slack       SlackGateway
	fetcher     ContentFetcher
	categorizer *categorize.Categorizer
	summarizer  Summarizer
	stats       StatsRecorder
}

// New wires the pipeline together.
func New(cfg *config.Config, gateway SlackGateway, fetcher ContentFetcher, categorizer *categorize.Categorizer, summarizer Summarizer, stats StatsRecorder) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		slack:       gateway,
		fetcher:     fetcher,
		categorizer: categorizer,
		summarizer:  summarizer,
		stats:       stats,
	}
}

// Run executes one daily pass. Per-category summarization failures are
// absorbed into fallback summaries; only missing input is fatal. Fatal
// errors are also posted to the digest channel before returning.
func (p *Pipeline) Run(ctx context.Context) (*model.DailyReport, error) {
	start := time.Now()

	// Step 1: collect article URLs from the feed channel
	slog.Info("Step 1: フィードチャネルからURL取得", "channel", p.cfg.FeedChannel)
	oldest := start.Add(-time.Duration(p.cfg.LookbackHours) * time.Hour)
	messages, err := p.slack.FetchChannelMessages(ctx, p.cfg.FeedChannel, oldest)
	if err != nil {
		return nil, p.fail(ctx, "url_fetch", fmt.Errorf("fetching channel messages: %w", err))
	}
	urls := slack.ExtractURLs(messages)
	if len(urls) == 0 {
		return nil, p.fail(ctx, "url_fetch", fmt.Errorf("no URLs found in channel %s", p.cfg.FeedChannel))
	}
	slog.Info("URL抽出完了", "messages", len(messages), "urls", len(urls))

	// Step 2: fetch and parse content
	slog.Info("Step 2: コンテンツ取得", "urls", len(urls))
	articles := p.fetcher.FetchAll(ctx, urls)
	if len(articles) == 0 {
		return nil, p.fail(ctx, "content_fetch", fmt.Errorf("no content could be fetched"))
	}

	// Step 3: categorize
	slog.Info("Step 3: カテゴリ分類", "articles", len(articles))
	batches, uncategorized := p.categorizer.Categorize(articles)
	for id, batch := range batches {
		batches[id] = categorize.LimitBatch(batch, p.cfg.MaxArticlesPerCategory)
	}

	// Step 4: summarize
	slog.Info("Step 4: 要約生成", "categories", len(batches))
	summaries, usage := p.summarizer.SummarizeAll(ctx, batches)

	// Step 5: assemble the report
	slog.Info("Step 5: レポート作成")
	dailyReport := report.Assemble(start, summaries, uncategorized, usage, time.Since(start))

	// Step 6: post the digest
	slog.Info("Step 6: ダイジェスト投稿", "channel", p.cfg.DigestChannel)
	digest := report.FormatDigest(dailyReport, p.cfg.Categories)
	if err := p.slack.PostMessage(ctx, p.cfg.DigestChannel, digest); err != nil {
		return nil, p.fail(ctx, "digest_post", fmt.Errorf("posting digest: %w", err))
	}

	// Step 7: persist statistics (never fatal)
	slog.Info("Step 7: 統計保存")
	p.stats.Record(ctx, dailyReport)

	slog.Info("✅ Daily Topic 処理完了",
		"articles", dailyReport.TotalArticles,
		"summaries", len(dailyReport.Summaries),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return dailyReport, nil
}

// fail posts an error notice best-effort and returns the wrapped error.
func (p *Pipeline) fail(ctx context.Context, step string, err error) error {
	slog.Error("処理失敗", "step", step, "error", err)
	if postErr := p.slack.PostError(ctx, p.cfg.DigestChannel, step, err); postErr != nil {
		slog.Warn("エラー通知の投稿に失敗", "error", postErr)
	}
	return fmt.Errorf("%s: %w", step, err)
}
