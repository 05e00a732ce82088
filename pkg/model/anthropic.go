package model

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// AnthropicClient implements Client using Anthropic's Messages API.
// Safe for concurrent use; the underlying SDK client handles concurrent
// requests.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic-backed client for the given model
// (e.g. "claude-sonnet-4-5").
func NewAnthropic(apiKey, model string) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClient{
		client: &client,
		model:  model,
	}
}

// Name returns "anthropic".
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Complete sends one exchange. The system text rides ahead of the prompt in
// a single user message.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("anthropic completion: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return Response{
		Text:   text,
		Tokens: int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}, nil
}
