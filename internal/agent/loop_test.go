package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/minibot-ai/minibot/internal/bus"
	"github.com/minibot-ai/minibot/internal/providers"
	"github.com/minibot-ai/minibot/internal/sessions"
	"github.com/minibot-ai/minibot/internal/tools"
)

// scriptedProvider replays canned responses and records requests.
type scriptedProvider struct {
	responses []*providers.ChatResponse
	requests  []providers.ChatRequest
	calls     int
}

func (p *scriptedProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.calls >= len(p.responses) {
		last := p.responses[len(p.responses)-1]
		return last, nil
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }
func (p *scriptedProvider) Name() string         { return "scripted" }

func newTestLoop(t *testing.T, provider providers.Provider) (*AgentLoop, *bus.MessageBus) {
	t.Helper()
	store, err := sessions.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	b := bus.New()
	loop := New(Config{
		Bus:           b,
		Provider:      provider,
		Sessions:      sessions.NewManager(store),
		Workspace:     t.TempDir(),
		MaxIterations: 3,
	})
	return loop, b
}

func TestSimpleTurn(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{Content: "hello back", FinishReason: "stop"},
	}}
	loop, _ := newTestLoop(t, provider)

	msg := bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "alice",
		ChatID:   "42",
		Content:  "hello",
		Metadata: map[string]string{"thread_ts": "123"},
	}
	out, err := loop.processMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Channel != "telegram" || out.ChatID != "42" || out.Content != "hello back" {
		t.Errorf("unexpected reply: %+v", out)
	}
	if out.Metadata["thread_ts"] != "123" {
		t.Errorf("metadata not preserved: %v", out.Metadata)
	}

	// The system prompt carries the session block.
	sys := provider.requests[0].Messages[0]
	if sys.Role != "system" {
		t.Fatalf("first message role = %q", sys.Role)
	}
	if !strings.Contains(sys.Content, "## Current Session\nChannel: telegram\nChat ID: 42") {
		t.Error("session block missing from system prompt")
	}

	hist := loop.sessions.GetOrCreate("telegram:42").Messages
	if len(hist) != 2 || hist[0].Role != "user" || hist[1].Role != "assistant" {
		t.Errorf("session history: %+v", hist)
	}
}

func TestToolCallIteration(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{
			ToolCalls: []providers.ToolCall{{
				ID:        "call_1",
				Name:      "greet",
				Arguments: map[string]interface{}{"who": "bob"},
			}},
			FinishReason: "tool_calls",
		},
		{Content: "greeted bob", FinishReason: "stop"},
	}}
	loop, _ := newTestLoop(t, provider)

	var gotArgs map[string]interface{}
	loop.Registry().Register(&fakeTool{
		name: "greet",
		fn: func(args map[string]interface{}) (string, error) {
			gotArgs = args
			return "done", nil
		},
	})

	out, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel: "cli", SenderID: "user", ChatID: "direct", Content: "greet bob",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Content != "greeted bob" {
		t.Errorf("reply = %q", out.Content)
	}
	if gotArgs["who"] != "bob" {
		t.Errorf("tool args: %v", gotArgs)
	}

	// Second request must carry the assistant tool call and the tool result.
	second := provider.requests[1].Messages
	var sawAssistant, sawTool bool
	for _, m := range second {
		if m.Role == "assistant" && len(m.ToolCalls) == 1 && m.ToolCalls[0].ID == "call_1" {
			sawAssistant = true
		}
		if m.Role == "tool" && m.ToolCallID == "call_1" && m.Content == "done" {
			sawTool = true
		}
	}
	if !sawAssistant || !sawTool {
		t.Errorf("tool exchange not replayed: assistant=%v tool=%v", sawAssistant, sawTool)
	}
}

func TestIterationBudgetExhausted(t *testing.T) {
	// Always asks for another tool call; the loop must give up politely.
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{
			ToolCalls:    []providers.ToolCall{{ID: "x", Name: "noop", Arguments: map[string]interface{}{}}},
			FinishReason: "tool_calls",
		},
	}}
	loop, _ := newTestLoop(t, provider)
	loop.Registry().Register(&fakeTool{name: "noop", fn: func(map[string]interface{}) (string, error) {
		return "ok", nil
	}})

	out, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel: "cli", SenderID: "user", ChatID: "direct", Content: "loop forever",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Content != exhaustedReply {
		t.Errorf("reply = %q", out.Content)
	}
	if len(provider.requests) != 3 {
		t.Errorf("requests = %d, want 3", len(provider.requests))
	}
}

func TestSystemMessageRouting(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{Content: "summarized", FinishReason: "stop"},
	}}
	loop, _ := newTestLoop(t, provider)

	out, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel:  "system",
		SenderID: "subagent:ab12",
		ChatID:   "telegram:42",
		Content:  "Subagent [ab12] completed.",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Channel != "telegram" || out.ChatID != "42" {
		t.Errorf("routed to %s:%s", out.Channel, out.ChatID)
	}

	hist := loop.sessions.GetOrCreate("telegram:42").Messages
	if len(hist) != 2 {
		t.Fatalf("history = %d", len(hist))
	}
	if !strings.HasPrefix(hist[0].Content, "[System: subagent:ab12] ") {
		t.Errorf("system record: %q", hist[0].Content)
	}
}

func TestSystemMessageWithoutOriginFallsBackToCLI(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{Content: "ok", FinishReason: "stop"},
	}}
	loop, _ := newTestLoop(t, provider)

	out, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel: "system", SenderID: "cron", ChatID: "direct", Content: "tick",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Channel != "cli" || out.ChatID != "direct" {
		t.Errorf("fallback routing: %s:%s", out.Channel, out.ChatID)
	}
}

func TestProviderDiagnosticBecomesReply(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{Content: "Error calling LLM: connection refused", FinishReason: "error"},
	}}
	loop, _ := newTestLoop(t, provider)

	out, err := loop.processMessage(context.Background(), bus.InboundMessage{
		Channel: "cli", SenderID: "user", ChatID: "direct", Content: "hi",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !strings.HasPrefix(out.Content, "Error calling LLM: ") {
		t.Errorf("reply = %q", out.Content)
	}
}

func TestProcessDirect(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		{Content: "direct answer", FinishReason: "stop"},
	}}
	loop, _ := newTestLoop(t, provider)

	got, err := loop.ProcessDirect(context.Background(), "question", "cli", "direct")
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	if got != "direct answer" {
		t.Errorf("got %q", got)
	}
}

type fakeTool struct {
	name string
	fn   func(args map[string]interface{}) (string, error)
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "fake" }
func (t *fakeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (t *fakeTool) Execute(_ context.Context, args map[string]interface{}) (string, error) {
	return t.fn(args)
}

var _ tools.Tool = (*fakeTool)(nil)
