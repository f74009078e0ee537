package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"dailytopic/internal/summarize"
)

// Client calls the Anthropic Messages API. It implements summarize.Caller.
type Client struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewClient creates a new Claude API client.
func NewClient(apiKey, model string, maxTokens int) *Client {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client:    &client,
		model:     anthropic.Model(model),
		maxTokens: int64(maxTokens),
	}
}

// Complete sends one prompt and returns the raw response text plus the token
// usage the API reported.
func (c *Client) Complete(ctx context.Context, prompt summarize.Prompt) (*summarize.CallResult, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: prompt.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	return &summarize.CallResult{
		Text: resp.Content[0].Text,
		Usage: &summarize.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
