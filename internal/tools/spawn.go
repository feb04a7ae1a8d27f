package tools

import (
	"context"
	"fmt"
	"sync"
)

// Spawner starts a background agent task and reports its completion back
// to the origin conversation. Implemented by agent.SubagentManager.
type Spawner interface {
	Spawn(ctx context.Context, task, label, originChannel, originChatID string) (string, error)
}

// SpawnTool hands a task off to a background subagent.
type SpawnTool struct {
	spawner Spawner

	mu      sync.Mutex
	channel string
	chatID  string
}

func NewSpawnTool(spawner Spawner) *SpawnTool {
	return &SpawnTool{spawner: spawner, channel: "cli", chatID: "direct"}
}

func (t *SpawnTool) Name() string { return "spawn" }

func (t *SpawnTool) Description() string {
	return "Spawn a subagent to handle a task in the background. " +
		"Use this for complex or time-consuming tasks that can run independently. " +
		"The subagent will complete the task and report back when done."
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Optional short label for the task (for display)",
			},
		},
		"required": []string{"task"},
	}
}

// SetContext records where the completion notification should land.
func (t *SpawnTool) SetContext(channel, chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel = channel
	t.chatID = chatID
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	task, _ := args["task"].(string)
	if task == "" {
		return "", fmt.Errorf("task is required")
	}
	label, _ := args["label"].(string)

	t.mu.Lock()
	channel, chatID := t.channel, t.chatID
	t.mu.Unlock()

	return t.spawner.Spawn(ctx, task, label, channel, chatID)
}
