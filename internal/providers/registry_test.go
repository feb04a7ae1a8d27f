package providers

import (
	"testing"

	"github.com/minibot-ai/minibot/internal/config"
)

func TestFromConfigKeywordMatch(t *testing.T) {
	tests := []struct {
		name  string
		model string
		setup func(*config.Config)
		want  string
	}{
		{
			name:  "prefixed model routes through openrouter",
			model: "anthropic/claude-opus-4-5",
			setup: func(c *config.Config) {
				c.Providers.OpenRouter.APIKey = "or-key"
				c.Providers.DeepSeek.APIKey = "ds-key"
			},
			want: "openrouter",
		},
		{
			name:  "deepseek model",
			model: "deepseek-chat",
			setup: func(c *config.Config) { c.Providers.DeepSeek.APIKey = "ds-key" },
			want:  "deepseek",
		},
		{
			name:  "claude without gateway goes to anthropic",
			model: "claude-opus-4-5",
			setup: func(c *config.Config) { c.Providers.Anthropic.APIKey = "a-key" },
			want:  "anthropic",
		},
		{
			name:  "unknown model falls back to first configured",
			model: "some-custom-model",
			setup: func(c *config.Config) { c.Providers.Groq.APIKey = "g-key" },
			want:  "groq",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.setup(cfg)
			p, err := FromConfig(cfg, tt.model)
			if err != nil {
				t.Fatalf("FromConfig: %v", err)
			}
			if p.Name() != tt.want {
				t.Errorf("provider = %q, want %q", p.Name(), tt.want)
			}
			if p.DefaultModel() != tt.model {
				t.Errorf("default model = %q", p.DefaultModel())
			}
		})
	}
}

func TestFromConfigNoProvider(t *testing.T) {
	if _, err := FromConfig(config.Default(), "gpt-5"); err == nil {
		t.Error("expected error with no configured providers")
	}
}
