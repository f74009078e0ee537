package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dailytopic/internal/model"
)

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Port string `json:"port"`
	Host string `json:"host"`

	// Anthropic API settings
	AnthropicAPIKey string `json:"-"` // Don't expose in JSON
	ClaudeModel     string `json:"claude_model"`
	MaxTokens       int    `json:"max_tokens"`

	// Token cost rates (USD per token) for the configured model
	CostPerInputToken  float64 `json:"cost_per_input_token"`
	CostPerOutputToken float64 `json:"cost_per_output_token"`

	// Slack settings
	SlackBotToken string `json:"-"` // Don't expose in JSON
	FeedChannel   string `json:"feed_channel"`
	DigestChannel string `json:"digest_channel"`

	// Webhook settings
	WebhookAuthToken string `json:"-"` // Don't expose in JSON

	// Processing settings
	LookbackHours          int    `json:"lookback_hours"`
	MinContentLength       int    `json:"min_content_length"`
	MaxBodyLength          int    `json:"max_body_length"`
	ContentBudget          int    `json:"content_budget"`
	MaxSummaryLength       int    `json:"max_summary_length"`
	MaxArticlesPerCategory int    `json:"max_articles_per_category"`
	MaxConcurrentRequests  int    `json:"max_concurrent_requests"`
	FallbackSummary        string `json:"fallback_summary"`

	// Statistics settings
	StatsDir    string `json:"stats_dir"`
	StatsBucket string `json:"stats_bucket"`

	// Category definitions, in enumeration order. The order is significant:
	// score ties are broken by it and digest sections follow it.
	Categories []model.CategoryDefinition `json:"categories"`
}

// DefaultFallbackSummary is posted for a category whose summarization failed.
const DefaultFallbackSummary = "要約の生成に失敗しました。"

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	config := &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		AnthropicAPIKey:    getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		ClaudeModel:        getEnvOrDefault("CLAUDE_MODEL", "claude-3-sonnet-20240229"),
		MaxTokens:          getEnvOrDefaultInt("CLAUDE_MAX_TOKENS", 1024),
		CostPerInputToken:  getEnvOrDefaultFloat("COST_PER_INPUT_TOKEN", 0.000003),
		CostPerOutputToken: getEnvOrDefaultFloat("COST_PER_OUTPUT_TOKEN", 0.000015),
		SlackBotToken:      getEnvOrDefault("SLACK_BOT_TOKEN", ""),
		FeedChannel:        getEnvOrDefault("RSS_FEED_CHANNEL", "rss-feed"),
		DigestChannel:      getEnvOrDefault("DAILY_TOPIC_CHANNEL", "daily-topic"),
		WebhookAuthToken:   getEnvOrDefault("WEBHOOK_AUTH_TOKEN", ""),

		LookbackHours:          getEnvOrDefaultInt("LOOKBACK_HOURS", 24),
		MinContentLength:       getEnvOrDefaultInt("MIN_CONTENT_LENGTH", 200),
		MaxBodyLength:          getEnvOrDefaultInt("MAX_BODY_LENGTH", 20000),
		ContentBudget:          getEnvOrDefaultInt("CONTENT_BUDGET", 3000),
		MaxSummaryLength:       getEnvOrDefaultInt("MAX_SUMMARY_LENGTH", 500),
		MaxArticlesPerCategory: getEnvOrDefaultInt("MAX_ARTICLES_PER_CATEGORY", 10),
		MaxConcurrentRequests:  getEnvOrDefaultInt("MAX_CONCURRENT_REQUESTS", 3),
		FallbackSummary:        getEnvOrDefault("FALLBACK_SUMMARY", DefaultFallbackSummary),

		StatsDir:    getEnvOrDefault("STATS_DIR", "stats"),
		StatsBucket: getEnvOrDefault("STATS_BUCKET", ""),
	}

	categories, err := loadCategories(getEnvOrDefault("CATEGORY_FILE", ""))
	if err != nil {
		return nil, err
	}
	config.Categories = categories

	return config, config.validate()
}

// validate checks if required configuration values are present
func (c *Config) validate() error {
	if c.AnthropicAPIKey == "" {
		return &ConfigError{Field: "ANTHROPIC_API_KEY", Message: "Anthropic API key is required"}
	}
	if c.SlackBotToken == "" {
		return &ConfigError{Field: "SLACK_BOT_TOKEN", Message: "Slack bot token is required"}
	}
	if !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		return &ConfigError{Field: "SLACK_BOT_TOKEN", Message: "must start with xoxb-"}
	}
	return ValidateCategories(c.Categories)
}

// ValidateCategories enforces the invariants no later stage can recover from:
// at least one scorable category, non-empty keywords for every scorable one,
// thresholds inside [0,1].
func ValidateCategories(categories []model.CategoryDefinition) error {
	scorable := 0
	seen := make(map[string]bool, len(categories))
	for _, cat := range categories {
		if cat.ID == "" {
			return &ConfigError{Field: "categories", Message: "category id must not be empty"}
		}
		if seen[cat.ID] {
			return &ConfigError{Field: "categories", Message: "duplicate category id: " + cat.ID}
		}
		seen[cat.ID] = true
		if cat.Threshold < 0 || cat.Threshold > 1 {
			return &ConfigError{Field: "categories", Message: fmt.Sprintf("category %s: threshold must be in [0,1]", cat.ID)}
		}
		if cat.Overflow {
			continue
		}
		if len(cat.Keywords) == 0 {
			return &ConfigError{Field: "categories", Message: fmt.Sprintf("category %s: keyword list must not be empty", cat.ID)}
		}
		scorable++
	}
	if scorable == 0 {
		return &ConfigError{Field: "categories", Message: "at least one scorable category is required"}
	}
	return nil
}

// categoryFile is the YAML shape of an external category definition file.
type categoryFile struct {
	Categories []model.CategoryDefinition `yaml:"categories"`
}

// loadCategories returns the built-in category set, or the contents of the
// YAML file at path when one is configured.
func loadCategories(path string) ([]model.CategoryDefinition, error) {
	if path == "" {
		return DefaultCategories(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading category file %s: %w", path, err)
	}

	var file categoryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing category file %s: %w", path, err)
	}
	if len(file.Categories) == 0 {
		return nil, &ConfigError{Field: "CATEGORY_FILE", Message: "category file contains no categories"}
	}

	return file.Categories, nil
}

// DefaultCategories returns the built-in category enumeration C1..C6.
// C1..C5 are scorable; C6 is the overflow bucket for unmatched articles.
func DefaultCategories() []model.CategoryDefinition {
	return []model.CategoryDefinition{
		{
			ID:    "C1",
			Label: "Software-Defined Vehicle",
			Keywords: []string{
				"SDV", "AUTOSAR", "Adaptive AUTOSAR", "車載ソフト", "Classic AUTOSAR",
			},
			Threshold: 0.3,
		},
		{
			ID:    "C2",
			Label: "Industrial IoT & Edge",
			Keywords: []string{
				"Industrial IoT", "IIoT", "スマートファクトリー", "Edge Computing",
				"エッジコンピューティング", "産業用IoT", "PLM",
			},
			Threshold: 0.3,
		},
		{
			ID:    "C3",
			Label: "Industrial Protocols",
			Keywords: []string{
				"MQTT", "OPC UA", "OPC UA FX", "open62541", "TSN", "openPLC",
				"ソフトウェアPLC",
			},
			Threshold: 0.3,
		},
		{
			ID:    "C4",
			Label: "Generative AI Tech",
			Keywords: []string{
				"Gemini CLI", "Gemini", "Claude", "Claude Code", "OpenAI",
				"Anthropic", "Mistral AI", "DeepMind",
			},
			Threshold: 0.3,
		},
		{
			ID:    "C5",
			Label: "Gen-AI Use Cases",
			Keywords: []string{
				"生成AI 活用事例", "LLM ユースケース", "RAG", "AI agent",
				"導入事例", "Case Study", "LLM",
			},
			Threshold: 0.3,
		},
		{
			ID:       "C6",
			Label:    "Other",
			Overflow: true,
		},
	}
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default if not set
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default if not set
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
