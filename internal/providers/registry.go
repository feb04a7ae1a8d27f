package providers

import (
	"fmt"
	"strings"

	"github.com/minibot-ai/minibot/internal/config"
)

// Spec describes one known provider: how to recognize its models and
// where its OpenAI-compatible endpoint lives.
type Spec struct {
	Name     string
	Keywords []string
	APIBase  string
	Gateway  bool // gateways (OpenRouter) accept any prefixed model name
}

// Specs is the provider routing table, in match-priority order.
// Gateways come first so prefixed names like "anthropic/claude-opus-4-5"
// route through them when configured.
var Specs = []Spec{
	{Name: "openrouter", Keywords: []string{"openrouter", "/"}, APIBase: "https://openrouter.ai/api/v1", Gateway: true},
	{Name: "deepseek", Keywords: []string{"deepseek"}, APIBase: "https://api.deepseek.com/v1"},
	{Name: "groq", Keywords: []string{"groq", "llama", "mixtral"}, APIBase: "https://api.groq.com/openai/v1"},
	{Name: "anthropic", Keywords: []string{"claude", "anthropic"}, APIBase: "https://api.anthropic.com/v1"},
	{Name: "openai", Keywords: []string{"gpt", "o1", "o3", "o4"}, APIBase: "https://api.openai.com/v1"},
}

// FromConfig selects a provider for the given model by keyword match,
// falling back to the first provider with a configured key.
func FromConfig(cfg *config.Config, model string) (Provider, error) {
	modelLower := strings.ToLower(model)

	for _, spec := range Specs {
		pc := providerConfig(cfg, spec.Name)
		if pc.APIKey == "" {
			continue
		}
		for _, kw := range spec.Keywords {
			if strings.Contains(modelLower, kw) {
				return build(spec, pc, model), nil
			}
		}
	}

	// Fallback: first configured provider.
	for _, spec := range Specs {
		pc := providerConfig(cfg, spec.Name)
		if pc.APIKey != "" {
			return build(spec, pc, model), nil
		}
	}

	return nil, fmt.Errorf("no LLM provider configured (set an apiKey under providers in config)")
}

func build(spec Spec, pc config.ProviderConfig, model string) Provider {
	apiBase := pc.APIBase
	if apiBase == "" {
		apiBase = spec.APIBase
	}
	return NewOpenAIProvider(spec.Name, pc.APIKey, apiBase, model, pc.ExtraHeaders)
}

func providerConfig(cfg *config.Config, name string) config.ProviderConfig {
	switch name {
	case "openrouter":
		return cfg.Providers.OpenRouter
	case "openai":
		return cfg.Providers.OpenAI
	case "anthropic":
		return cfg.Providers.Anthropic
	case "deepseek":
		return cfg.Providers.DeepSeek
	case "groq":
		return cfg.Providers.Groq
	}
	return config.ProviderConfig{}
}
