package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/everkin/kin-go-sdk/core"
)

const (
	// DefaultModel is used for persona replies.
	DefaultModel = "claude-sonnet-4-20250514"

	// FastModel is used for structured calls (emotion classification,
	// memory extraction) where latency and cost matter more than prose.
	FastModel = "claude-3-5-haiku-20241022"
)

// AnthropicGenerator implements Generator on the Anthropic Messages API.
type AnthropicGenerator struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicGenerator creates a generator bound to one model.
// Callers typically build two: one on DefaultModel for replies and one
// on FastModel for structured calls.
func NewAnthropicGenerator(client *anthropic.Client, model string) *AnthropicGenerator {
	if model == "" {
		model = DefaultModel
	}
	return &AnthropicGenerator{
		client: client,
		model:  model,
	}
}

// Generate calls the Messages API once and concatenates text blocks.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string, cfg core.SamplingConfig) (string, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(cfg.Temperature),
	}

	// The API has no native diversity penalty; approximate by tightening
	// nucleus sampling as the penalty grows.
	if cfg.DiversityPenalty > 0 {
		topP := 1.0 - 0.3*cfg.DiversityPenalty
		params.TopP = anthropic.Float(topP)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
