package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON, so numeric
// chat IDs in allowFrom lists work without quoting.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Config is the root configuration for the minibot runtime.
// Keys are camelCase on disk.
type Config struct {
	Agents    AgentsConfig    `json:"agents"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Tools     ToolsConfig     `json:"tools"`
	Sessions  SessionsConfig  `json:"sessions"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
}

// AgentsConfig contains agent defaults.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

// AgentDefaults are the settings applied to every agent turn.
type AgentDefaults struct {
	Workspace         string  `json:"workspace"`
	Model             string  `json:"model"`
	MaxTokens         int     `json:"maxTokens"`
	Temperature       float64 `json:"temperature"`
	MaxToolIterations int     `json:"maxToolIterations"`
}

// ChannelsConfig holds one entry per channel adapter.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// TelegramConfig configures the Telegram adapter.
type TelegramConfig struct {
	Enabled   bool                `json:"enabled"`
	Token     string              `json:"token"`
	AllowFrom FlexibleStringSlice `json:"allowFrom"`
}

// DiscordConfig configures the Discord adapter.
type DiscordConfig struct {
	Enabled   bool                `json:"enabled"`
	Token     string              `json:"token"`
	AllowFrom FlexibleStringSlice `json:"allowFrom"`
}

// WhatsAppConfig configures the WhatsApp bridge adapter.
type WhatsAppConfig struct {
	Enabled   bool                `json:"enabled"`
	BridgeURL string              `json:"bridgeUrl"`
	AllowFrom FlexibleStringSlice `json:"allowFrom"`
}

// ProviderConfig holds credentials for one LLM provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty"`
}

// ProvidersConfig holds all provider credentials.
type ProvidersConfig struct {
	OpenRouter ProviderConfig `json:"openrouter"`
	OpenAI     ProviderConfig `json:"openai"`
	Anthropic  ProviderConfig `json:"anthropic"`
	DeepSeek   ProviderConfig `json:"deepseek"`
	Groq       ProviderConfig `json:"groq"`
}

// ToolsConfig configures tool behaviour.
type ToolsConfig struct {
	Exec                ExecToolConfig `json:"exec"`
	Web                 WebToolsConfig `json:"web"`
	RestrictToWorkspace bool           `json:"restrictToWorkspace"`
}

// ExecToolConfig configures the shell tool.
type ExecToolConfig struct {
	Timeout int `json:"timeout"` // seconds
}

// WebToolsConfig configures web tools.
type WebToolsConfig struct {
	Search WebSearchConfig `json:"search"`
}

// WebSearchConfig configures the Brave search tool.
type WebSearchConfig struct {
	APIKey     string `json:"apiKey"`
	MaxResults int    `json:"maxResults"`
}

// SessionsConfig configures session persistence.
type SessionsConfig struct {
	Backend string `json:"backend"` // "file" (default) or "sqlite"
}

// HeartbeatConfig configures the periodic self-trigger.
type HeartbeatConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{
			Defaults: AgentDefaults{
				Workspace:         "~/.minibot/workspace",
				Model:             "anthropic/claude-opus-4-5",
				MaxTokens:         8192,
				Temperature:       0.7,
				MaxToolIterations: 20,
			},
		},
		Tools: ToolsConfig{
			Exec: ExecToolConfig{Timeout: 60},
			Web:  WebToolsConfig{Search: WebSearchConfig{MaxResults: 5}},
		},
		Sessions:  SessionsConfig{Backend: "file"},
		Heartbeat: HeartbeatConfig{Enabled: true, IntervalMinutes: 30},
	}
}

// WorkspacePath returns the expanded workspace path.
func (c *Config) WorkspacePath() string {
	return ExpandHome(c.Agents.Defaults.Workspace)
}

// DataDir returns the minibot data directory (~/.minibot).
func DataDir() string {
	return ExpandHome("~/.minibot")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
