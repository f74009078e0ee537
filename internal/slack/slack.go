package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Client handles Slack API operations: reading the feed channel and posting
// the digest.
type Client struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Slack client
func NewClient(botToken string) *Client {
	return &Client{
		botToken: botToken,
		baseURL:  "https://slack.com/api",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithBaseURL overrides the API base URL. Used by tests.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = baseURL
	return c
}

// Message represents one Slack channel message.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
	TS   string `json:"ts"`
	User string `json:"user,omitempty"`
}

// historyResponse is the conversations.history response shape.
type historyResponse struct {
	OK               bool      `json:"ok"`
	Error            string    `json:"error,omitempty"`
	Messages         []Message `json:"messages"`
	HasMore          bool      `json:"has_more"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// FetchChannelMessages returns all messages posted to channel since oldest,
// following pagination cursors.
func (c *Client) FetchChannelMessages(ctx context.Context, channel string, oldest time.Time) ([]Message, error) {
	var messages []Message
	cursor := ""

	for {
		params := url.Values{}
		params.Set("channel", channel)
		params.Set("oldest", strconv.FormatInt(oldest.Unix(), 10))
		params.Set("limit", "200")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		endpoint := c.baseURL + "/conversations.history?" + params.Encode()
		httpReq, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.botToken)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("sending request: %w", err)
		}

		var history historyResponse
		err = json.NewDecoder(resp.Body).Decode(&history)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		if !history.OK {
			return nil, fmt.Errorf("slack API error: %s", history.Error)
		}

		messages = append(messages, history.Messages...)

		if !history.HasMore || history.ResponseMetadata.NextCursor == "" {
			break
		}
		cursor = history.ResponseMetadata.NextCursor
	}

	return messages, nil
}

// URL extraction patterns: Slack's <url|title> form, markdown links, and
// bare URLs.
var (
	slackLinkPattern    = regexp.MustCompile(`<(https?://[^>|]+)(?:\|[^>]*)?>`)
	markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\((https?://[^\)]+)\)`)
	bareURLPattern      = regexp.MustCompile(`https?://[^\s<>"'\]\)\}]+`)
)

// excludedDomains are never treated as article URLs (Slack's own links,
// private networks).
var excludedDomains = []string{
	"slack.com",
	"localhost",
	"127.0.0.1",
	"192.168.",
	"10.",
	"172.",
}

// ExtractURLs collects every article URL found in the messages, deduplicated
// in first-seen order.
func ExtractURLs(messages []Message) []string {
	seen := make(map[string]bool)
	var urls []string

	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] || !isValidArticleURL(raw) {
			return
		}
		seen[raw] = true
		urls = append(urls, raw)
	}

	for _, msg := range messages {
		for _, m := range slackLinkPattern.FindAllStringSubmatch(msg.Text, -1) {
			add(m[1])
		}
		for _, m := range markdownLinkPattern.FindAllStringSubmatch(msg.Text, -1) {
			add(m[1])
		}
		// Bare URLs last: anything already captured via the bracketed forms
		// has been seen and is skipped.
		stripped := slackLinkPattern.ReplaceAllString(msg.Text, " ")
		stripped = markdownLinkPattern.ReplaceAllString(stripped, " ")
		for _, m := range bareURLPattern.FindAllString(stripped, -1) {
			add(m)
		}
	}

	return urls
}

// isValidArticleURL filters out non-http schemes and excluded domains.
func isValidArticleURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if parsed.Host == "" {
		return false
	}
	for _, excluded := range excludedDomains {
		if strings.Contains(parsed.Host, excluded) {
			return false
		}
	}
	return true
}

// ChatPostMessageRequest represents a Slack chat.postMessage request
type ChatPostMessageRequest struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// PostMessage sends a text message to the given channel.
func (c *Client) PostMessage(ctx context.Context, channel, text string) error {
	req := ChatPostMessageRequest{
		Channel:   channel,
		Text:      text,
		Username:  "Daily Topic",
		IconEmoji: ":newspaper:",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.botToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&slackResp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if !slackResp.OK {
		return fmt.Errorf("slack API error: %s", slackResp.Error)
	}

	return nil
}

// PostError posts a processing failure notice so a failed run is visible in
// the channel.
func (c *Client) PostError(ctx context.Context, channel, step string, runErr error) error {
	timestamp := time.Now().In(time.FixedZone("JST", 9*3600)).Format("2006-01-02 15:04:05")
	text := fmt.Sprintf(`⚠️ *Daily Topic 処理エラー*

ステップ: %s
エラー: %v

⏰ 発生時刻: %s`, step, runErr, timestamp)

	return c.PostMessage(ctx, channel, text)
}
