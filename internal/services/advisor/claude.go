package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-sonnet-4-20250514"

// claudeCompleter backs the advisor with the Anthropic Messages API.
type claudeCompleter struct {
	client *anthropic.Client
	model  string
}

func newClaudeCompleter(apiKey, model string) (*claudeCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required for the claude advisor")
	}
	if model == "" {
		model = defaultClaudeModel
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &claudeCompleter{client: &client, model: model}, nil
}

func (c *claudeCompleter) name() string { return "claude" }

func (c *claudeCompleter) close() error {
	c.client = nil
	return nil
}

func (c *claudeCompleter) complete(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("empty response from claude")
	}
	return response.String(), nil
}
