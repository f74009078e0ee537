package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dailytopic/internal/categorize"
	"dailytopic/internal/config"
	"dailytopic/internal/mocks"
	"dailytopic/internal/model"
	"dailytopic/internal/slack"
	"dailytopic/internal/summarize"
)

func pipelineConfig() *config.Config {
	return &config.Config{
		FeedChannel:            "rss-feed",
		DigestChannel:          "daily-topic",
		LookbackHours:          24,
		MaxArticlesPerCategory: 10,
		ContentBudget:          3000,
		MaxSummaryLength:       500,
		MaxConcurrentRequests:  2,
		FallbackSummary:        config.DefaultFallbackSummary,
		Categories: []model.CategoryDefinition{
			{ID: "C1", Label: "Vehicles", Keywords: []string{"SDV", "AUTOSAR"}, Threshold: 0.3},
			{ID: "C4", Label: "Gen AI", Keywords: []string{"Claude", "OpenAI"}, Threshold: 0.3},
			{ID: "C6", Label: "Other", Overflow: true},
		},
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, gateway *mocks.MockSlack, fetcher *mocks.MockFetcher, caller summarize.Caller) (*Pipeline, *mocks.MockStats) {
	t.Helper()

	categorizer, err := categorize.New(cfg.Categories, nil)
	if err != nil {
		t.Fatalf("categorize.New() error: %v", err)
	}
	coordinator := summarize.NewCoordinator(caller, cfg.Categories, summarize.Options{
		ContentBudget:    cfg.ContentBudget,
		MaxSummaryLength: cfg.MaxSummaryLength,
		MaxConcurrent:    cfg.MaxConcurrentRequests,
		FallbackSummary:  cfg.FallbackSummary,
	})
	stats := &mocks.MockStats{}
	return New(cfg, gateway, fetcher, categorizer, coordinator, stats), stats
}

func TestRunEndToEnd(t *testing.T) {
	cfg := pipelineConfig()
	gateway := &mocks.MockSlack{
		Messages: []slack.Message{
			{Text: "<https://example.com/sdv|SDV news>"},
			{Text: "https://example.com/claude"},
		},
	}
	fetcher := &mocks.MockFetcher{
		Articles: []model.Article{
			{URL: "https://example.com/sdv", Title: "SDV and AUTOSAR", Body: "SDV article about AUTOSAR platforms"},
			{URL: "https://example.com/claude", Title: "Claude update", Body: "Claude and OpenAI model news"},
			{URL: "https://example.com/misc", Title: "Cooking", Body: "a recipe with no tech keywords"},
		},
	}
	caller := &mocks.MockCaller{
		Responses: map[string]*summarize.CallResult{
			"カテゴリ: C1": {
				Text:  `{"category":"C1","summary":"車載まとめ","confidence":0.9,"key_points":["p1"]}`,
				Usage: &summarize.TokenUsage{InputTokens: 500, OutputTokens: 100},
			},
			"カテゴリ: C4": {
				Text:  `{"category":"C4","summary":"AIまとめ","confidence":0.8,"key_points":["p2"]}`,
				Usage: &summarize.TokenUsage{InputTokens: 400, OutputTokens: 80},
			},
		},
	}

	p, stats := newTestPipeline(t, cfg, gateway, fetcher, caller)
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if report.TotalArticles != 3 {
		t.Errorf("TotalArticles = %d, want 3", report.TotalArticles)
	}
	if len(report.Summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(report.Summaries))
	}
	if report.Summaries[0].Category != "C1" || report.Summaries[1].Category != "C4" {
		t.Errorf("summary order: %s, %s", report.Summaries[0].Category, report.Summaries[1].Category)
	}
	if len(report.Uncategorized) != 1 || report.Uncategorized[0].URL != "https://example.com/misc" {
		t.Errorf("uncategorized = %+v", report.Uncategorized)
	}
	if report.Usage.TotalTokens() != 1080 {
		t.Errorf("usage tokens = %d", report.Usage.TotalTokens())
	}

	if len(gateway.PostedTexts) != 1 || gateway.PostedTo[0] != "daily-topic" {
		t.Fatalf("digest posts = %v", gateway.PostedTo)
	}
	digest := gateway.PostedTexts[0]
	for _, want := range []string{"車載まとめ", "AIまとめ", "C6: Other"} {
		if !strings.Contains(digest, want) {
			t.Errorf("digest missing %q:\n%s", want, digest)
		}
	}

	if len(stats.Recorded) != 1 {
		t.Errorf("stats records = %d, want 1", len(stats.Recorded))
	}
}

func TestRunSummarizerFailureStillPosts(t *testing.T) {
	cfg := pipelineConfig()
	gateway := &mocks.MockSlack{
		Messages: []slack.Message{{Text: "https://example.com/sdv"}},
	}
	fetcher := &mocks.MockFetcher{
		Articles: []model.Article{
			{URL: "https://example.com/sdv", Title: "SDV", Body: "SDV and AUTOSAR content"},
		},
	}
	caller := &mocks.MockCaller{Err: errors.New("api unavailable")}

	p, _ := newTestPipeline(t, cfg, gateway, fetcher, caller)
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// The run completes with a fallback summary and still posts the digest.
	if len(report.Summaries) != 1 || !report.Summaries[0].Fallback {
		t.Fatalf("expected one fallback summary, got %+v", report.Summaries)
	}
	if len(gateway.PostedTexts) != 1 {
		t.Fatalf("digest posts = %d, want 1", len(gateway.PostedTexts))
	}
	if !strings.Contains(gateway.PostedTexts[0], config.DefaultFallbackSummary) {
		t.Errorf("digest missing fallback text:\n%s", gateway.PostedTexts[0])
	}
	if len(gateway.ErrorPosts) != 0 {
		t.Errorf("summarization failure must not trigger an error post: %v", gateway.ErrorPosts)
	}
}

func TestRunNoURLsIsFatal(t *testing.T) {
	cfg := pipelineConfig()
	gateway := &mocks.MockSlack{
		Messages: []slack.Message{{Text: "no links in this message"}},
	}

	p, stats := newTestPipeline(t, cfg, gateway, &mocks.MockFetcher{}, &mocks.MockCaller{})
	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "url_fetch") {
		t.Errorf("error = %v", err)
	}
	if len(gateway.ErrorPosts) != 1 || gateway.ErrorPosts[0] != "url_fetch" {
		t.Errorf("error posts = %v", gateway.ErrorPosts)
	}
	if len(stats.Recorded) != 0 {
		t.Errorf("failed run must not record stats")
	}
}

func TestRunFetchErrorIsFatal(t *testing.T) {
	cfg := pipelineConfig()
	gateway := &mocks.MockSlack{FetchErr: errors.New("channel_not_found")}

	p, _ := newTestPipeline(t, cfg, gateway, &mocks.MockFetcher{}, &mocks.MockCaller{})
	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "url_fetch") {
		t.Errorf("error = %v", err)
	}
}

func TestRunNoContentIsFatal(t *testing.T) {
	cfg := pipelineConfig()
	gateway := &mocks.MockSlack{
		Messages: []slack.Message{{Text: "https://example.com/gone"}},
	}

	// Fetcher returns nothing: every URL failed.
	p, _ := newTestPipeline(t, cfg, gateway, &mocks.MockFetcher{}, &mocks.MockCaller{})
	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "content_fetch") {
		t.Errorf("error = %v", err)
	}
	if len(gateway.ErrorPosts) != 1 || gateway.ErrorPosts[0] != "content_fetch" {
		t.Errorf("error posts = %v", gateway.ErrorPosts)
	}
}

func TestRunDigestPostErrorIsFatal(t *testing.T) {
	cfg := pipelineConfig()
	gateway := &mocks.MockSlack{
		Messages: []slack.Message{{Text: "https://example.com/sdv"}},
		PostErr:  errors.New("not_in_channel"),
	}
	fetcher := &mocks.MockFetcher{
		Articles: []model.Article{
			{URL: "https://example.com/sdv", Title: "SDV", Body: "SDV and AUTOSAR content"},
		},
	}
	caller := &mocks.MockCaller{
		Default: &summarize.CallResult{Text: `{"category":"C1","summary":"s"}`},
	}

	p, stats := newTestPipeline(t, cfg, gateway, fetcher, caller)
	_, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "digest_post") {
		t.Errorf("error = %v", err)
	}
	if len(stats.Recorded) != 0 {
		t.Errorf("failed run must not record stats")
	}
}
