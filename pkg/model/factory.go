package model

import (
	"fmt"
	"os"
)

// Config selects and configures a provider.
type Config struct {
	// Provider is "anthropic", "openai" or "mock".
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Model names the provider model. Required except for mock.
	Model string `yaml:"model" mapstructure:"model"`

	// APIKey overrides the provider's environment variable
	// (ANTHROPIC_API_KEY, OPENAI_API_KEY).
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// FromConfig builds a Client from configuration.
func FromConfig(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("ANTHROPIC_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("anthropic provider: no API key configured and ANTHROPIC_API_KEY is unset")
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("anthropic provider: model is required")
		}
		return NewAnthropic(key, cfg.Model), nil

	case "openai":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("openai provider: no API key configured and OPENAI_API_KEY is unset")
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("openai provider: model is required")
		}
		return NewOpenAI(key, cfg.Model), nil

	case "mock", "":
		return NewStaticMock("mock completion"), nil

	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
