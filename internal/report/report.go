package report

import (
	"fmt"
	"strings"
	"time"

	"dailytopic/internal/model"
)

// maxReferenceLinks caps how many article links one digest section carries.
const maxReferenceLinks = 5

// Assemble combines the summarization output and the uncategorized list into
// the final report. It tolerates a partial summary sequence: categories whose
// summarization was abandoned are simply not in it.
func Assemble(date time.Time, summaries []model.SummaryResult, uncategorized []model.Article, usage model.UsageRecord, elapsed time.Duration) *model.DailyReport {
	total := len(uncategorized)
	for _, s := range summaries {
		total += s.ArticleCount
	}

	return &model.DailyReport{
		Date:           date,
		Summaries:      summaries,
		Uncategorized:  uncategorized,
		TotalArticles:  total,
		Usage:          usage,
		ProcessingTime: elapsed,
	}
}

// FormatDigest renders the report as a Slack message: one section per
// summarized category in enumeration order, the uncategorized URL list, and
// a statistics footer.
func FormatDigest(r *model.DailyReport, categories []model.CategoryDefinition) string {
	labels := make(map[string]string, len(categories))
	overflowID := ""
	for _, cat := range categories {
		labels[cat.ID] = cat.Label
		if cat.Overflow {
			overflowID = cat.ID
		}
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📰 *Daily Topic - %s*\n", r.Date.Format("2006年01月02日")))

	for _, summary := range r.Summaries {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("*%s: %s*\n", summary.Category, labels[summary.Category]))
		b.WriteString(summary.Summary)
		b.WriteString("\n")

		if summary.Fallback {
			b.WriteString("_(要約生成に失敗したためプレースホルダを表示しています)_\n")
		} else {
			for _, point := range summary.KeyPoints {
				b.WriteString(fmt.Sprintf("• %s\n", point))
			}
		}

		if len(summary.ArticleURLs) > 0 {
			b.WriteString("📎 参考記事: ")
			b.WriteString(formatLinks(summary.ArticleURLs, 0))
			b.WriteString("\n")
		}
	}

	if len(r.Uncategorized) > 0 {
		label := "Other"
		if overflowID != "" {
			label = fmt.Sprintf("%s: %s", overflowID, labels[overflowID])
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("*%s (%d記事)*\n", label, len(r.Uncategorized)))

		// URL lists are chunked so one line never carries more than five links.
		urls := make([]string, 0, len(r.Uncategorized))
		for _, a := range r.Uncategorized {
			urls = append(urls, a.URL)
		}
		for i := 0; i < len(urls); i += maxReferenceLinks {
			chunk := urls[i:min(i+maxReferenceLinks, len(urls))]
			b.WriteString("📎 参考記事: ")
			b.WriteString(formatLinks(chunk, i))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("📊 処理統計: %d記事 | %dトークン | $%.4f | %.1f秒",
		r.TotalArticles,
		r.Usage.TotalTokens(),
		r.Usage.CostUSD,
		r.ProcessingTime.Seconds(),
	))

	return b.String()
}

// formatLinks renders up to maxReferenceLinks URLs as numbered Slack links.
// offset shifts the visible numbering for chunked lists.
func formatLinks(urls []string, offset int) string {
	if len(urls) > maxReferenceLinks {
		urls = urls[:maxReferenceLinks]
	}
	links := make([]string, 0, len(urls))
	for i, u := range urls {
		links = append(links, fmt.Sprintf("<%s|記事%d>", u, offset+i+1))
	}
	return strings.Join(links, " | ")
}
