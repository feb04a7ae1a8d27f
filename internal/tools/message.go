package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/minibot-ai/minibot/internal/bus"
)

// MessageTool sends a message to a chat on any connected channel. The
// default destination is the conversation the agent is currently serving.
type MessageTool struct {
	bus *bus.MessageBus

	mu      sync.Mutex
	channel string
	chatID  string
}

func NewMessageTool(b *bus.MessageBus) *MessageTool {
	return &MessageTool{bus: b}
}

func (t *MessageTool) Name() string { return "message" }

func (t *MessageTool) Description() string {
	return "Send a message to a chat. Defaults to the current conversation when channel and chat_id are omitted."
}

func (t *MessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "The message text to send",
			},
			"channel": map[string]interface{}{
				"type":        "string",
				"description": "Target channel (defaults to the current one)",
			},
			"chat_id": map[string]interface{}{
				"type":        "string",
				"description": "Target chat ID (defaults to the current one)",
			},
			"media": map[string]interface{}{
				"type":        "array",
				"description": "Optional media file paths or URLs to attach",
				"items":       map[string]interface{}{"type": "string"},
			},
		},
		"required": []string{"content"},
	}
}

// SetContext records the conversation the agent is currently handling.
func (t *MessageTool) SetContext(channel, chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel = channel
	t.chatID = chatID
}

func (t *MessageTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	content, _ := args["content"].(string)
	if content == "" {
		return "", fmt.Errorf("content is required")
	}

	t.mu.Lock()
	channel, chatID := t.channel, t.chatID
	t.mu.Unlock()

	if c, ok := args["channel"].(string); ok && c != "" {
		channel = c
	}
	if c, ok := args["chat_id"].(string); ok && c != "" {
		chatID = c
	}
	if channel == "" || chatID == "" {
		return "", fmt.Errorf("no target conversation: channel and chat_id are required")
	}

	var media []string
	if raw, ok := args["media"].([]interface{}); ok {
		for _, m := range raw {
			if s, sok := m.(string); sok && s != "" {
				media = append(media, s)
			}
		}
	}

	msg := bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
		Media:   media,
	}
	if err := t.bus.PublishOutbound(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return fmt.Sprintf("Message sent to %s:%s", channel, chatID), nil
}
