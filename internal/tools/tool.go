package tools

import (
	"context"

	"github.com/minibot-ai/minibot/internal/providers"
)

// Tool is one capability exposed to the LLM. Parameters must be a
// JSON-Schema object; Execute returns the text fed back as the tool
// result. Errors are returned, not panicked; the registry converts
// them to strings the LLM can read.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ContextAware is implemented by tools whose side effects must target the
// conversation that triggered the current turn (message, spawn, cron).
// The agent loop calls SetContext just before each turn. This is safe
// only because turns are strictly serialized by the single-consumer loop.
type ContextAware interface {
	SetContext(channel, chatID string)
}

// Definition exports a tool in the OpenAI function-calling shape.
func Definition(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
