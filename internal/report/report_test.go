package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"dailytopic/internal/model"
)

func reportCategories() []model.CategoryDefinition {
	return []model.CategoryDefinition{
		{ID: "C1", Label: "Vehicles", Keywords: []string{"SDV"}, Threshold: 0.3},
		{ID: "C4", Label: "Gen AI", Keywords: []string{"Claude"}, Threshold: 0.3},
		{ID: "C6", Label: "Other", Overflow: true},
	}
}

func TestAssemble(t *testing.T) {
	date := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	summaries := []model.SummaryResult{
		{Category: "C1", ArticleCount: 3},
		{Category: "C4", ArticleCount: 2},
	}
	uncategorized := []model.Article{{URL: "u1"}, {URL: "u2"}}
	usage := model.UsageRecord{InputTokens: 100, OutputTokens: 50, CostUSD: 0.01, Calls: 2}

	r := Assemble(date, summaries, uncategorized, usage, 12*time.Second)

	if r.TotalArticles != 7 {
		t.Errorf("TotalArticles = %d, want 7", r.TotalArticles)
	}
	if r.Usage.TotalTokens() != 150 {
		t.Errorf("usage tokens = %d", r.Usage.TotalTokens())
	}
	if !r.Date.Equal(date) || r.ProcessingTime != 12*time.Second {
		t.Errorf("report metadata wrong: %+v", r)
	}
}

func TestFormatDigest(t *testing.T) {
	r := &model.DailyReport{
		Date: time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		Summaries: []model.SummaryResult{
			{
				Category:     "C1",
				Summary:      "車載ソフトの動向まとめ。",
				Confidence:   0.8,
				KeyPoints:    []string{"SDVの標準化が進展", "AUTOSARの新リリース"},
				ArticleCount: 2,
				ArticleURLs:  []string{"https://example.com/1", "https://example.com/2"},
			},
		},
		Uncategorized:  []model.Article{{URL: "https://example.com/misc"}},
		TotalArticles:  3,
		Usage:          model.UsageRecord{InputTokens: 1000, OutputTokens: 200, CostUSD: 0.0123},
		ProcessingTime: 45500 * time.Millisecond,
	}

	digest := FormatDigest(r, reportCategories())

	for _, want := range []string{
		"📰 *Daily Topic - 2026年08月29日*",
		"*C1: Vehicles*",
		"車載ソフトの動向まとめ。",
		"• SDVの標準化が進展",
		"• AUTOSARの新リリース",
		"📎 参考記事: <https://example.com/1|記事1> | <https://example.com/2|記事2>",
		"*C6: Other (1記事)*",
		"<https://example.com/misc|記事1>",
		"📊 処理統計: 3記事 | 1200トークン | $0.0123 | 45.5秒",
	} {
		if !strings.Contains(digest, want) {
			t.Errorf("digest missing %q:\n%s", want, digest)
		}
	}
}

func TestFormatDigestFallbackMarker(t *testing.T) {
	r := &model.DailyReport{
		Date: time.Now(),
		Summaries: []model.SummaryResult{
			{
				Category:     "C4",
				Summary:      "要約の生成に失敗しました。",
				KeyPoints:    []string{},
				Fallback:     true,
				ArticleCount: 1,
				ArticleURLs:  []string{"https://example.com/x"},
			},
		},
		TotalArticles: 1,
	}

	digest := FormatDigest(r, reportCategories())

	if !strings.Contains(digest, "_(要約生成に失敗したためプレースホルダを表示しています)_") {
		t.Errorf("missing fallback marker:\n%s", digest)
	}
	if strings.Contains(digest, "• ") {
		t.Errorf("fallback section must not render key points:\n%s", digest)
	}
}

func TestFormatDigestLinkCap(t *testing.T) {
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i+1)
	}

	r := &model.DailyReport{
		Date: time.Now(),
		Summaries: []model.SummaryResult{
			{Category: "C1", Summary: "s", KeyPoints: []string{}, ArticleCount: 8, ArticleURLs: urls},
		},
		TotalArticles: 8,
	}

	digest := FormatDigest(r, reportCategories())

	if !strings.Contains(digest, "記事5") {
		t.Errorf("expected five links:\n%s", digest)
	}
	if strings.Contains(digest, "記事6") {
		t.Errorf("summary section must cap links at five:\n%s", digest)
	}
}

func TestFormatDigestUncategorizedChunking(t *testing.T) {
	var articles []model.Article
	for i := 1; i <= 7; i++ {
		articles = append(articles, model.Article{URL: fmt.Sprintf("https://example.com/u%d", i)})
	}

	r := &model.DailyReport{
		Date:          time.Now(),
		Uncategorized: articles,
		TotalArticles: 7,
	}

	digest := FormatDigest(r, reportCategories())

	// Seven links split into a chunk of five and a chunk of two, with
	// continuous numbering across chunks.
	if !strings.Contains(digest, "<https://example.com/u6|記事6>") {
		t.Errorf("second chunk numbering wrong:\n%s", digest)
	}
	if got := strings.Count(digest, "📎 参考記事:"); got != 2 {
		t.Errorf("link lines = %d, want 2:\n%s", got, digest)
	}
}

func TestFormatDigestEmptyRun(t *testing.T) {
	r := &model.DailyReport{Date: time.Now()}

	digest := FormatDigest(r, reportCategories())

	if !strings.Contains(digest, "📰 *Daily Topic") {
		t.Errorf("missing header:\n%s", digest)
	}
	if !strings.Contains(digest, "📊 処理統計: 0記事") {
		t.Errorf("missing stats footer:\n%s", digest)
	}
}
