// Package agent implements the turn-taking loop at the heart of minibot:
// consume one inbound message, build context, call the LLM, execute tool
// calls until it settles on a reply, persist the turn, publish the reply.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minibot-ai/minibot/internal/bus"
	"github.com/minibot-ai/minibot/internal/cron"
	"github.com/minibot-ai/minibot/internal/providers"
	"github.com/minibot-ai/minibot/internal/sessions"
	"github.com/minibot-ai/minibot/internal/tools"
)

const (
	defaultMaxIterations = 20
	historyWindow        = 50

	exhaustedReply = "I've completed processing but have no response to give."
)

// Config collects the loop's dependencies and tuning.
type Config struct {
	Bus       *bus.MessageBus
	Provider  providers.Provider
	Sessions  *sessions.Manager
	Workspace string

	Model         string
	MaxTokens     int
	Temperature   float64
	MaxIterations int

	BraveAPIKey         string
	SearchMaxResults    int
	ExecTimeoutSeconds  int
	RestrictToWorkspace bool

	// Optional collaborators. Nil disables the corresponding tool.
	CronService *cron.Service
}

// AgentLoop is the single consumer of the inbound queue.
type AgentLoop struct {
	bus      *bus.MessageBus
	provider providers.Provider
	sessions *sessions.Manager
	builder  *ContextBuilder
	registry *tools.Registry
	subs     *SubagentManager

	model         string
	maxTokens     int
	temperature   float64
	maxIterations int
}

func New(cfg Config) *AgentLoop {
	model := cfg.Model
	if model == "" {
		model = cfg.Provider.DefaultModel()
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	l := &AgentLoop{
		bus:           cfg.Bus,
		provider:      cfg.Provider,
		sessions:      cfg.Sessions,
		builder:       NewContextBuilder(cfg.Workspace),
		registry:      tools.NewRegistry(),
		model:         model,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		maxIterations: maxIter,
	}
	l.subs = NewSubagentManager(cfg.Provider, cfg.Bus, SubagentConfig{
		Workspace:           cfg.Workspace,
		Model:               model,
		MaxIterations:       maxIter,
		BraveAPIKey:         cfg.BraveAPIKey,
		SearchMaxResults:    cfg.SearchMaxResults,
		ExecTimeoutSeconds:  cfg.ExecTimeoutSeconds,
		RestrictToWorkspace: cfg.RestrictToWorkspace,
	})
	l.registerDefaultTools(cfg)
	return l
}

func (l *AgentLoop) registerDefaultTools(cfg Config) {
	l.registry.Register(tools.NewReadFileTool(cfg.Workspace, cfg.RestrictToWorkspace))
	l.registry.Register(tools.NewWriteFileTool(cfg.Workspace, cfg.RestrictToWorkspace))
	l.registry.Register(tools.NewEditFileTool(cfg.Workspace, cfg.RestrictToWorkspace))
	l.registry.Register(tools.NewListDirTool(cfg.Workspace, cfg.RestrictToWorkspace))
	l.registry.Register(tools.NewExecTool(cfg.Workspace, cfg.RestrictToWorkspace, cfg.ExecTimeoutSeconds))
	l.registry.Register(tools.NewWebSearchTool(cfg.BraveAPIKey, cfg.SearchMaxResults))
	l.registry.Register(tools.NewWebFetchTool())
	l.registry.Register(tools.NewMessageTool(cfg.Bus))
	l.registry.Register(tools.NewSpawnTool(l.subs))
	if cfg.CronService != nil {
		l.registry.Register(tools.NewCronTool(cfg.CronService))
	}
}

// Registry exposes the tool registry, mostly for tests and status output.
func (l *AgentLoop) Registry() *tools.Registry { return l.registry }

// Skills exposes the context builder's skills loader for watch wiring.
func (l *AgentLoop) Skills() *SkillsLoader { return l.builder.Skills() }

// Run consumes inbound messages until ctx is canceled. Processing errors
// turn into apology replies; they never kill the loop.
func (l *AgentLoop) Run(ctx context.Context) {
	slog.Info("agent loop started", "model", l.model, "tools", l.registry.Len())
	for {
		msg, ok := l.bus.ConsumeInbound(ctx)
		if !ok {
			slog.Info("agent loop stopped")
			return
		}

		out, err := l.processMessage(ctx, msg)
		if err != nil {
			slog.Error("failed to process message", "channel", msg.Channel, "chat_id", msg.ChatID, "error", err)
			out = &bus.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.ChatID,
				Content: fmt.Sprintf("Sorry, I encountered an error: %s", err),
			}
		}
		if out == nil {
			continue
		}
		if err := l.bus.PublishOutbound(ctx, *out); err != nil {
			slog.Error("failed to publish reply", "channel", out.Channel, "error", err)
		}
	}
}

// Shutdown waits for detached subagents.
func (l *AgentLoop) Shutdown() {
	l.subs.Shutdown()
}

func (l *AgentLoop) processMessage(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	if msg.Channel == "system" {
		return l.processSystemMessage(ctx, msg)
	}

	preview := msg.Content
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	slog.Info("processing message", "channel", msg.Channel, "sender", msg.SenderID, "preview", preview)

	session := l.sessions.GetOrCreate(msg.SessionKey())
	l.registry.SetContext(msg.Channel, msg.ChatID)

	messages := l.builder.BuildMessages(session.History(historyWindow), msg.Content, msg.Media, msg.Channel, msg.ChatID)
	final, err := l.runIterations(ctx, messages)
	if err != nil {
		return nil, err
	}
	if final == "" {
		final = exhaustedReply
	}

	session.AddMessage("user", msg.Content)
	session.AddMessage("assistant", final)
	if err := l.sessions.Save(msg.SessionKey()); err != nil {
		slog.Warn("failed to persist session", "key", msg.SessionKey(), "error", err)
	}

	return &bus.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		Content:  final,
		Metadata: msg.Metadata,
	}, nil
}

// processSystemMessage handles subagent completions and scheduler events.
// The chat_id carries the origin as "channel:chat_id" so the reply can be
// routed back to where the work was requested.
func (l *AgentLoop) processSystemMessage(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	slog.Info("processing system message", "sender", msg.SenderID)

	originChannel, originChatID, ok := strings.Cut(msg.ChatID, ":")
	if !ok {
		originChannel, originChatID = "cli", msg.ChatID
	}

	sessionKey := originChannel + ":" + originChatID
	session := l.sessions.GetOrCreate(sessionKey)
	l.registry.SetContext(originChannel, originChatID)

	messages := l.builder.BuildMessages(session.History(historyWindow), msg.Content, nil, originChannel, originChatID)
	final, err := l.runIterations(ctx, messages)
	if err != nil {
		return nil, err
	}
	if final == "" {
		final = "Background task completed."
	}

	session.AddMessage("user", fmt.Sprintf("[System: %s] %s", msg.SenderID, msg.Content))
	session.AddMessage("assistant", final)
	if err := l.sessions.Save(sessionKey); err != nil {
		slog.Warn("failed to persist session", "key", sessionKey, "error", err)
	}

	return &bus.OutboundMessage{
		Channel: originChannel,
		ChatID:  originChatID,
		Content: final,
	}, nil
}

// runIterations drives the LLM/tool cycle until the model answers without
// tool calls or the iteration cap is hit (then "" is returned).
func (l *AgentLoop) runIterations(ctx context.Context, messages []providers.Message) (string, error) {
	for i := 0; i < l.maxIterations; i++ {
		resp, err := l.provider.Chat(ctx, providers.ChatRequest{
			Messages:    messages,
			Tools:       l.registry.Definitions(),
			Model:       l.model,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		})
		if err != nil {
			return "", err
		}

		if !resp.HasToolCalls() {
			return resp.Content, nil
		}

		messages = append(messages, providers.Message{
			Role:             "assistant",
			Content:          resp.Content,
			ReasoningContent: resp.ReasoningContent,
			ToolCalls:        resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			slog.Info("tool call", "tool", tc.Name)
			result := l.registry.Execute(ctx, tc.Name, tc.Arguments)
			messages = append(messages, providers.Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    result,
			})
		}
	}
	return "", nil
}

// ProcessDirect runs one turn outside the bus, for the CLI and heartbeat.
// The session key follows from channel and chatID.
func (l *AgentLoop) ProcessDirect(ctx context.Context, content, channel, chatID string) (string, error) {
	msg := bus.InboundMessage{
		Channel:  channel,
		SenderID: "user",
		ChatID:   chatID,
		Content:  content,
	}
	out, err := l.processMessage(ctx, msg)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return out.Content, nil
}
