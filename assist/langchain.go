package assist

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainCapability adapts a langchaingo model to the Capability
// interface.
type LangChainCapability struct {
	model       llms.Model
	temperature float64
}

func NewLangChainCapability(model llms.Model, temperature float64) *LangChainCapability {
	return &LangChainCapability{model: model, temperature: temperature}
}

func (c *LangChainCapability) Complete(ctx context.Context, instruction, input string) (string, error) {
	prompt := instruction + "\n\n" + input
	return llms.GenerateFromSinglePrompt(ctx, c.model, prompt, llms.WithTemperature(c.temperature))
}

// Unavailable returns a capability that always fails. It is used when no
// provider is configured, so assistance requests report unavailability
// instead of being silently dropped.
func Unavailable() Capability { return unavailable{} }

type unavailable struct{}

func (unavailable) Complete(context.Context, string, string) (string, error) {
	return "", errors.New("no language-model provider configured")
}

// NewCapability builds a capability for a configured provider.
func NewCapability(provider, model, serverURL, apiKey string, temperature float64) (Capability, error) {
	switch provider {
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(model)}
		if serverURL != "" {
			opts = append(opts, ollama.WithServerURL(serverURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init ollama: %w", err)
		}
		return NewLangChainCapability(llm, temperature), nil
	case "openai":
		opts := []openai.Option{openai.WithModel(model)}
		if apiKey != "" {
			opts = append(opts, openai.WithToken(apiKey))
		}
		if serverURL != "" {
			opts = append(opts, openai.WithBaseURL(serverURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai: %w", err)
		}
		return NewLangChainCapability(llm, temperature), nil
	default:
		return nil, fmt.Errorf("unknown assist provider %q", provider)
	}
}
