package providers

import "context"

// Provider is the interface the agent loop talks to.
type Provider interface {
	// Chat sends messages to the LLM and returns a response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// DefaultModel returns the provider's default model name.
	DefaultModel() string

	// Name returns the provider identifier (e.g. "openrouter", "deepseek").
	Name() string
}

// ChatRequest contains the input for a Chat call.
type ChatRequest struct {
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Model       string           `json:"model,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

// ChatResponse is the result of an LLM call.
// FinishReason "error" carries a diagnostic in Content; the loop sends it
// to the user like any terminal response.
type ChatResponse struct {
	Content          string     `json:"content"`
	ReasoningContent string     `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall `json:"tool_calls,omitempty"`
	FinishReason     string     `json:"finish_reason"` // "stop", "tool_calls", "length", "error"
	Usage            *Usage     `json:"usage,omitempty"`
}

// HasToolCalls reports whether the response requests tool executions.
func (r *ChatResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// ImageContent is a base64-encoded image for vision-capable models.
type ImageContent struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64-encoded bytes
}

// Message represents one conversation message.
// ReasoningContent on assistant messages must be echoed back to
// thinking-capable models on subsequent requests.
type Message struct {
	Role             string         `json:"role"` // "system", "user", "assistant", "tool"
	Content          string         `json:"content"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	Images           []ImageContent `json:"images,omitempty"`
	ToolCalls        []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID       string         `json:"tool_call_id,omitempty"` // for role="tool"
	Name             string         `json:"name,omitempty"`         // tool name for role="tool"
}

// ToolCall is a tool invocation requested by the LLM.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolDefinition describes a tool available to the LLM, in the OpenAI
// function-calling shape.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the function part of a tool definition.
type ToolFunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
