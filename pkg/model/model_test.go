package model_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishimeka/astro/pkg/model"
)

func TestMockRecordsCalls(t *testing.T) {
	m := model.NewMock(func(req model.Request) (model.Response, error) {
		return model.Response{Text: "echo: " + req.Prompt, Tokens: 3}, nil
	})

	resp, err := m.Complete(context.Background(), model.Request{System: "be brief", Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", resp.Text)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "be brief", calls[0].System)
	assert.Equal(t, "hello", calls[0].Prompt)
}

func TestMockHonorsContext(t *testing.T) {
	m := model.NewStaticMock("never")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Complete(ctx, model.Request{Prompt: "hi"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.Calls())
}

func TestMockScriptedError(t *testing.T) {
	boom := errors.New("provider down")
	m := model.NewMock(func(model.Request) (model.Response, error) {
		return model.Response{}, boom
	})

	_, err := m.Complete(context.Background(), model.Request{Prompt: "hi"})
	assert.ErrorIs(t, err, boom)
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      model.Config
		wantName string
		wantErr  string
	}{
		{name: "default is mock", cfg: model.Config{}, wantName: "mock"},
		{name: "explicit mock", cfg: model.Config{Provider: "mock"}, wantName: "mock"},
		{name: "anthropic", cfg: model.Config{Provider: "anthropic", Model: "claude-sonnet-4-5", APIKey: "k"}, wantName: "anthropic"},
		{name: "openai", cfg: model.Config{Provider: "openai", Model: "gpt-4o", APIKey: "k"}, wantName: "openai"},
		{name: "anthropic without model", cfg: model.Config{Provider: "anthropic", APIKey: "k"}, wantErr: "model is required"},
		{name: "unknown provider", cfg: model.Config{Provider: "cohere"}, wantErr: "unknown model provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := model.FromConfig(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, client.Name())
		})
	}
}

func TestFromConfigMissingKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := model.FromConfig(model.Config{Provider: "anthropic", Model: "claude-sonnet-4-5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestFromConfigEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	client, err := model.FromConfig(model.Config{Provider: "openai", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "openai", client.Name())
}
