package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"dailytopic/internal/model"
	"dailytopic/internal/slack"
	"dailytopic/internal/summarize"
)

// MockCaller is a scripted summarize.Caller.
type MockCaller struct {
	// Responses maps a substring of the system prompt (typically the
	// category id) to the canned response. When empty, Default is used.
	Responses map[string]*summarize.CallResult
	Default   *summarize.CallResult
	Err       error

	mu    sync.Mutex
	Calls []summarize.Prompt
}

func (m *MockCaller) Complete(ctx context.Context, prompt summarize.Prompt) (*summarize.CallResult, error) {
	// The coordinator calls from multiple goroutines.
	m.mu.Lock()
	m.Calls = append(m.Calls, prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for key, resp := range m.Responses {
		if key != "" && strings.Contains(prompt.System, key) {
			return resp, nil
		}
	}
	if m.Default != nil {
		return m.Default, nil
	}
	return &summarize.CallResult{Text: "{}"}, nil
}

// MockSlack is a scripted pipeline.SlackGateway.
type MockSlack struct {
	Messages    []slack.Message
	FetchErr    error
	PostErr     error
	PostedTexts []string
	PostedTo    []string
	ErrorPosts  []string
}

func (m *MockSlack) FetchChannelMessages(ctx context.Context, channel string, oldest time.Time) ([]slack.Message, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.Messages, nil
}

func (m *MockSlack) PostMessage(ctx context.Context, channel, text string) error {
	if m.PostErr != nil {
		return m.PostErr
	}
	m.PostedTo = append(m.PostedTo, channel)
	m.PostedTexts = append(m.PostedTexts, text)
	return nil
}

func (m *MockSlack) PostError(ctx context.Context, channel, step string, runErr error) error {
	m.ErrorPosts = append(m.ErrorPosts, step)
	return nil
}

// MockFetcher returns canned articles regardless of the requested URLs.
type MockFetcher struct {
	Articles []model.Article
}

func (m *MockFetcher) FetchAll(ctx context.Context, urls []string) []model.Article {
	return m.Articles
}

// MockStats records the reports it was asked to persist.
type MockStats struct {
	Recorded []*model.DailyReport
}

func (m *MockStats) Record(ctx context.Context, report *model.DailyReport) {
	m.Recorded = append(m.Recorded, report)
}

func (m *MockStats) ListSnapshots(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(m.Recorded))
	for _, r := range m.Recorded {
		names = append(names, r.Date.Format("20060102_150405")+".json")
	}
	return names, nil
}
