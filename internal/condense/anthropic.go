package condense

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when AnthropicConfig.Model is empty.
const DefaultModel = "claude-sonnet-4-5"

// AnthropicConfig configures the Anthropic-backed condenser.
type AnthropicConfig struct {
	// APIKey overrides ANTHROPIC_API_KEY.
	APIKey string

	// BaseURL overrides the API endpoint (tests, proxies).
	BaseURL string

	// Model to request (default: DefaultModel).
	Model string

	// MaxTokens caps the response size (default: 8192).
	MaxTokens int64

	// MaxRetries is passed to the SDK; negative keeps the SDK default.
	MaxRetries int
}

// AnthropicCondenser condenses text with the Anthropic Messages API.
type AnthropicCondenser struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicCondenser creates a condenser. The SDK reads ANTHROPIC_API_KEY
// when config.APIKey is empty.
func NewAnthropicCondenser(config AnthropicConfig) *AnthropicCondenser {
	var opts []option.RequestOption
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 8192
	}

	return &AnthropicCondenser{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(config.Model),
		maxTokens: config.MaxTokens,
	}
}

// Condense implements Condenser.
func (c *AnthropicCondenser) Condense(ctx context.Context, text string, targetLength int, instructions string) (string, error) {
	// Roughly three characters per token, plus room for list markup.
	maxTokens := int64(targetLength/3) + 256
	if maxTokens > c.maxTokens {
		maxTokens = c.maxTokens
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    []anthropic.TextBlockParam{{Text: instructions}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to condense text: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
