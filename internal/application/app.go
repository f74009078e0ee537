package application

import (
	"context"
	"fmt"

	"dailytopic/internal/categorize"
	"dailytopic/internal/claude"
	"dailytopic/internal/config"
	"dailytopic/internal/content"
	"dailytopic/internal/pipeline"
	"dailytopic/internal/slack"
	"dailytopic/internal/stats"
	"dailytopic/internal/summarize"
)

// Application bundles the wired pipeline and its resources.
type Application struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Stats    *stats.Writer
}

// New creates an application instance with all dependencies wired.
func New(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	categorizer, err := categorize.New(cfg.Categories, categorize.KeywordScorer{})
	if err != nil {
		return nil, fmt.Errorf("creating categorizer: %w", err)
	}

	caller := claude.NewClient(cfg.AnthropicAPIKey, cfg.ClaudeModel, cfg.MaxTokens)
	coordinator := summarize.NewCoordinator(caller, cfg.Categories, summarize.Options{
		ContentBudget:      cfg.ContentBudget,
		MaxSummaryLength:   cfg.MaxSummaryLength,
		MaxConcurrent:      cfg.MaxConcurrentRequests,
		FallbackSummary:    cfg.FallbackSummary,
		CostPerInputToken:  cfg.CostPerInputToken,
		CostPerOutputToken: cfg.CostPerOutputToken,
	})

	statsWriter, err := stats.NewWriter(ctx, cfg.StatsDir, cfg.StatsBucket)
	if err != nil {
		return nil, fmt.Errorf("creating stats writer: %w", err)
	}

	slackClient := slack.NewClient(cfg.SlackBotToken)
	fetcher := content.NewFetcher(cfg.MinContentLength, cfg.MaxBodyLength, cfg.MaxConcurrentRequests)

	return &Application{
		Config:   cfg,
		Pipeline: pipeline.New(cfg, slackClient, fetcher, categorizer, coordinator, statsWriter),
		Stats:    statsWriter,
	}, nil
}

// Close cleans up application resources
func (a *Application) Close() error {
	if a.Stats != nil {
		return a.Stats.Close()
	}
	return nil
}
