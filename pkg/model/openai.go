package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient implements Client using OpenAI's Chat Completions API.
// Safe for concurrent use.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-backed client for the given model
// (e.g. "gpt-4o").
func NewOpenAI(apiKey, model string) *OpenAIClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client: &client,
		model:  model,
	}
}

// Name returns "openai".
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Complete sends one exchange. The system text rides ahead of the prompt in
// a single user message.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Response{}, errors.New("openai completion: no choices returned")
	}

	return Response{
		Text:   completion.Choices[0].Message.Content,
		Tokens: int(completion.Usage.TotalTokens),
	}, nil
}
