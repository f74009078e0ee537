package content

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"dailytopic/internal/model"
)

const userAgent = "Mozilla/5.0 (compatible; DailyTopicBot/1.0)"

// Fetcher downloads article pages and extracts plain text from them.
type Fetcher struct {
	httpClient       *http.Client
	minContentLength int
	maxBodyLength    int
	maxConcurrent    int
}

// NewFetcher creates a content fetcher. Bodies shorter than minContentLength
// runes are rejected; longer ones are truncated to maxBodyLength runes.
func NewFetcher(minContentLength, maxBodyLength, maxConcurrent int) *Fetcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		minContentLength: minContentLength,
		maxBodyLength:    maxBodyLength,
		maxConcurrent:    maxConcurrent,
	}
}

// NormalizeURL unwraps the noise Slack and redirectors add around article
// URLs: a |title tail, HTML entities, and Google redirect wrappers.
func NormalizeURL(raw string) string {
	if i := strings.Index(raw, "|"); i != -1 {
		raw = raw[:i]
	}
	decoded := html.UnescapeString(raw)

	if strings.Contains(decoded, "google.com/url") {
		if parsed, err := url.Parse(decoded); err == nil {
			if real := parsed.Query().Get("url"); real != "" {
				return real
			}
		}
	}

	return decoded
}

// Fetch downloads one URL and extracts its title and body text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.Article, error) {
	target := NormalizeURL(rawURL)

	httpReq, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", target, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", target, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		title = og
	}

	body := extractText(doc)
	if len([]rune(body)) < f.minContentLength {
		return nil, fmt.Errorf("content too short for %s: %d chars", target, len([]rune(body)))
	}
	body = truncateRunes(body, f.maxBodyLength)

	return &model.Article{
		URL:       target,
		Title:     title,
		Body:      body,
		FetchedAt: time.Now(),
	}, nil
}

// FetchAll downloads all URLs with bounded concurrency. Failed fetches are
// logged and skipped; the result keeps the input order.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []model.Article {
	results := make([]*model.Article, len(urls))
	semaphore := make(chan struct{}, f.maxConcurrent)
	var wg sync.WaitGroup

	for i, u := range urls {
		wg.Add(1)
		go func(index int, rawURL string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			article, err := f.Fetch(ctx, rawURL)
			if err != nil {
				slog.Warn("記事取得に失敗", "url", rawURL, "error", err)
				return
			}
			results[index] = article
		}(i, u)
	}

	wg.Wait()

	articles := make([]model.Article, 0, len(urls))
	for _, a := range results {
		if a != nil {
			articles = append(articles, *a)
		}
	}

	slog.Info("📄 コンテンツ取得完了", "fetched", len(articles), "requested", len(urls))
	return articles
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// extractText pulls readable text out of the document, skipping script,
// style and navigation chrome.
func extractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	text := root.Text()
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// truncateRunes cuts s to at most max runes.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
