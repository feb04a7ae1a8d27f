package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/minibot-ai/minibot/internal/bus"
	"github.com/minibot-ai/minibot/internal/providers"
	"github.com/minibot-ai/minibot/internal/tools"
)

const maxConcurrentSubagents = 5

// SubagentManager runs detached background agent tasks. A subagent gets
// its own message list and a restricted tool set (no message, spawn or
// cron, so it cannot recurse or talk to channels directly). Completion is
// reported back through the bus as a system inbound message, never as a
// direct callback, so it passes the same serialization point as user
// input.
type SubagentManager struct {
	provider      providers.Provider
	b             *bus.MessageBus
	builder       *ContextBuilder
	registry      *tools.Registry
	model         string
	maxIterations int

	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

// SubagentConfig carries the subset of agent settings a subagent inherits.
type SubagentConfig struct {
	Workspace           string
	Model               string
	MaxIterations       int
	BraveAPIKey         string
	SearchMaxResults    int
	ExecTimeoutSeconds  int
	RestrictToWorkspace bool
}

func NewSubagentManager(provider providers.Provider, b *bus.MessageBus, cfg SubagentConfig) *SubagentManager {
	registry := tools.NewRegistry()
	registry.Register(tools.NewReadFileTool(cfg.Workspace, cfg.RestrictToWorkspace))
	registry.Register(tools.NewWriteFileTool(cfg.Workspace, cfg.RestrictToWorkspace))
	registry.Register(tools.NewEditFileTool(cfg.Workspace, cfg.RestrictToWorkspace))
	registry.Register(tools.NewListDirTool(cfg.Workspace, cfg.RestrictToWorkspace))
	registry.Register(tools.NewExecTool(cfg.Workspace, cfg.RestrictToWorkspace, cfg.ExecTimeoutSeconds))
	registry.Register(tools.NewWebSearchTool(cfg.BraveAPIKey, cfg.SearchMaxResults))
	registry.Register(tools.NewWebFetchTool())

	ctx, cancel := context.WithCancel(context.Background())
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 20
	}
	return &SubagentManager{
		provider:      provider,
		b:             b,
		builder:       NewContextBuilder(cfg.Workspace),
		registry:      registry,
		model:         cfg.Model,
		maxIterations: maxIter,
		ctx:           ctx,
		cancel:        cancel,
		sem:           semaphore.NewWeighted(maxConcurrentSubagents),
	}
}

// Spawn launches a background task and returns immediately with a status
// line for the calling agent.
func (m *SubagentManager) Spawn(_ context.Context, task, label, originChannel, originChatID string) (string, error) {
	if !m.sem.TryAcquire(1) {
		return "", fmt.Errorf("too many concurrent subagents (max %d)", maxConcurrentSubagents)
	}

	id := uuid.NewString()[:8]
	display := label
	if display == "" {
		display = id
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.sem.Release(1)
		m.run(id, display, task, originChannel, originChatID)
	}()

	slog.Info("subagent spawned", "id", id, "label", display, "origin", originChannel+":"+originChatID)
	preview := task
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return fmt.Sprintf("Spawned subagent [%s] to work on: %s", display, preview), nil
}

// Shutdown cancels running subagents and waits for them to finish.
func (m *SubagentManager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}

func (m *SubagentManager) run(id, display, task, originChannel, originChatID string) {
	systemPrompt := m.builder.BuildSystemPrompt() + fmt.Sprintf(`

---

# Subagent Task

You are a subagent spawned to complete one specific task. Work autonomously:
do not ask questions, just complete the task and report the outcome.
Your final message is delivered to the agent that spawned you.

Task: %s`, task)

	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: task},
	}

	var result string
	var failure error
	for i := 0; i < m.maxIterations; i++ {
		resp, err := m.provider.Chat(m.ctx, providers.ChatRequest{
			Messages: messages,
			Tools:    m.registry.Definitions(),
			Model:    m.model,
		})
		if err != nil {
			failure = err
			break
		}
		if !resp.HasToolCalls() {
			result = resp.Content
			break
		}
		messages = append(messages, providers.Message{
			Role:             "assistant",
			Content:          resp.Content,
			ReasoningContent: resp.ReasoningContent,
			ToolCalls:        resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			out := m.registry.Execute(m.ctx, tc.Name, tc.Arguments)
			messages = append(messages, providers.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    out,
			})
		}
	}

	var content string
	switch {
	case failure != nil:
		content = fmt.Sprintf("Subagent [%s] failed.\n\nTask: %s\n\nError: %s", display, task, failure)
		slog.Error("subagent failed", "id", id, "error", failure)
	case result == "":
		content = fmt.Sprintf("Subagent [%s] finished without producing a result.\n\nTask: %s", display, task)
	default:
		content = fmt.Sprintf("Subagent [%s] completed.\n\nTask: %s\n\nResult:\n%s", display, task, result)
		slog.Info("subagent completed", "id", id, "label", display)
	}

	msg := bus.InboundMessage{
		Channel:  "system",
		SenderID: "subagent:" + id,
		ChatID:   originChannel + ":" + originChatID,
		Content:  content,
	}
	if err := m.b.PublishInbound(m.ctx, msg); err != nil {
		slog.Error("subagent result lost", "id", id, "error", err)
	}
}
