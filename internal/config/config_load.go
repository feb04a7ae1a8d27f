package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, migrates legacy shapes, then
// overlays env vars. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Parse into a generic map first so legacy key layouts can be moved
	// before strict struct decoding.
	var raw map[string]interface{}
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	migrate(raw)

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize config: %w", err)
	}
	if err := json.Unmarshal(normalized, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// migrate rewrites obsolete config shapes in place.
// Currently: tools.exec.restrictToWorkspace → tools.restrictToWorkspace.
func migrate(raw map[string]interface{}) {
	tools, ok := raw["tools"].(map[string]interface{})
	if !ok {
		return
	}
	execCfg, ok := tools["exec"].(map[string]interface{})
	if !ok {
		return
	}
	if v, ok := execCfg["restrictToWorkspace"]; ok {
		if _, exists := tools["restrictToWorkspace"]; !exists {
			tools["restrictToWorkspace"] = v
		}
		delete(execCfg, "restrictToWorkspace")
	}
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("MINIBOT_OPENROUTER_API_KEY", &c.Providers.OpenRouter.APIKey)
	envStr("MINIBOT_OPENAI_API_KEY", &c.Providers.OpenAI.APIKey)
	envStr("MINIBOT_ANTHROPIC_API_KEY", &c.Providers.Anthropic.APIKey)
	envStr("MINIBOT_DEEPSEEK_API_KEY", &c.Providers.DeepSeek.APIKey)
	envStr("MINIBOT_GROQ_API_KEY", &c.Providers.Groq.APIKey)
	envStr("MINIBOT_BRAVE_API_KEY", &c.Tools.Web.Search.APIKey)

	envStr("MINIBOT_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("MINIBOT_DISCORD_TOKEN", &c.Channels.Discord.Token)
	envStr("MINIBOT_WHATSAPP_BRIDGE_URL", &c.Channels.WhatsApp.BridgeURL)

	// Auto-enable channels when credentials arrive via env
	if os.Getenv("MINIBOT_TELEGRAM_TOKEN") != "" {
		c.Channels.Telegram.Enabled = true
	}
	if os.Getenv("MINIBOT_DISCORD_TOKEN") != "" {
		c.Channels.Discord.Enabled = true
	}
	if os.Getenv("MINIBOT_WHATSAPP_BRIDGE_URL") != "" {
		c.Channels.WhatsApp.Enabled = true
	}

	envStr("MINIBOT_MODEL", &c.Agents.Defaults.Model)
	envStr("MINIBOT_WORKSPACE", &c.Agents.Defaults.Workspace)
	envStr("MINIBOT_SESSIONS_BACKEND", &c.Sessions.Backend)
}

// Save writes the config to a JSON file.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
