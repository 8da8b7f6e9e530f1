// Package llmutil wires the built-in LLM adapters into a provider factory.
package llmutil

import (
	"context"
	"fmt"

	"github.com/efebarandurmaz/minichat/internal/llm"
	"github.com/efebarandurmaz/minichat/internal/llm/anthropic"
	"github.com/efebarandurmaz/minichat/internal/llm/gemini"
	"github.com/efebarandurmaz/minichat/internal/llm/ollama"
	"github.com/efebarandurmaz/minichat/internal/llm/openai"
)

// customAPIKey is sent to custom endpoints when no key is configured; most
// local OpenAI-compatible servers ignore it.
const customAPIKey = "not-needed"

// RegisterDefaultProviders registers every built-in adapter (openai,
// anthropic, ollama, gemini, custom and the OpenAI-compatible presets) into
// factory.
func RegisterDefaultProviders(factory *llm.ProviderFactory) {
	factory.Register("openai", func(c llm.ProviderConfig) (llm.Provider, error) {
		if c.APIKey == "" {
			return nil, fmt.Errorf("API key required (set llm.api_key or OPENAI_API_KEY)")
		}
		return openai.New(c.APIKey, llm.ModelOrDefault("openai", c.Model), c.BaseURL), nil
	})
	factory.Register("anthropic", func(c llm.ProviderConfig) (llm.Provider, error) {
		if c.APIKey == "" {
			return nil, fmt.Errorf("API key required (set llm.api_key or ANTHROPIC_API_KEY)")
		}
		return anthropic.New(c.APIKey, llm.ModelOrDefault("anthropic", c.Model), c.BaseURL), nil
	})
	factory.Register("ollama", func(c llm.ProviderConfig) (llm.Provider, error) {
		return ollama.New(c.BaseURL, llm.ModelOrDefault("ollama", c.Model)), nil
	})
	factory.Register("gemini", func(c llm.ProviderConfig) (llm.Provider, error) {
		return gemini.New(context.Background(), c.APIKey, llm.ModelOrDefault("gemini", c.Model), c.BaseURL)
	})
	factory.Register("custom", func(c llm.ProviderConfig) (llm.Provider, error) {
		if c.BaseURL == "" {
			return nil, fmt.Errorf("base URL required (set llm.base_url or LLM_BASE_URL)")
		}
		key := c.APIKey
		if key == "" {
			key = customAPIKey
		}
		return openai.NewNamed("custom", key, llm.ModelOrDefault("custom", c.Model), c.BaseURL), nil
	})

	for _, name := range []string{"groq", "together", "deepseek"} {
		name := name
		factory.Register(name, func(c llm.ProviderConfig) (llm.Provider, error) {
			if c.APIKey == "" {
				return nil, fmt.Errorf("API key required (set llm.api_key)")
			}
			base := c.BaseURL
			if base == "" {
				base = llm.KnownProviders[name]
			}
			return openai.NewNamed(name, c.APIKey, llm.ModelOrDefault(name, c.Model), base), nil
		})
	}
}
