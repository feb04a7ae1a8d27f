package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/minibot-ai/minibot/internal/cron"
)

// CronTool lets the agent schedule reminders and recurring tasks. Jobs
// created here deliver their output back to the conversation that created
// them, which is why the tool is context aware.
type CronTool struct {
	service *cron.Service

	mu      sync.Mutex
	channel string
	chatID  string
}

func NewCronTool(service *cron.Service) *CronTool {
	return &CronTool{service: service}
}

func (t *CronTool) Name() string { return "cron" }

func (t *CronTool) Description() string {
	return "Schedule tasks: add a reminder (one-shot or recurring), list scheduled jobs, or remove one"
}

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"description": "The operation to perform",
				"enum":        []interface{}{"add", "list", "remove"},
			},
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Optional job name (defaults to the message)",
			},
			"message": map[string]interface{}{
				"type":        "string",
				"description": "Message injected into the agent when the job fires (for add)",
			},
			"every_seconds": map[string]interface{}{
				"type":        "integer",
				"description": "Run every N seconds (for recurring jobs)",
				"minimum":     1,
			},
			"cron_expr": map[string]interface{}{
				"type":        "string",
				"description": "Cron expression, e.g. '0 9 * * *' (alternative to every_seconds)",
			},
			"at": map[string]interface{}{
				"type":        "string",
				"description": "RFC 3339 time for a one-shot job, e.g. '2026-01-02T15:04:05Z'",
			},
			"job_id": map[string]interface{}{
				"type":        "string",
				"description": "Job ID (for remove)",
			},
		},
		"required": []string{"action"},
	}
}

// SetContext records the conversation that job replies should target.
func (t *CronTool) SetContext(channel, chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel = channel
	t.chatID = chatID
}

func (t *CronTool) Execute(_ context.Context, args map[string]interface{}) (string, error) {
	action, _ := args["action"].(string)
	switch action {
	case "add":
		return t.add(args)
	case "list":
		return t.list()
	case "remove":
		return t.remove(args)
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

func (t *CronTool) add(args map[string]interface{}) (string, error) {
	message, _ := args["message"].(string)
	if message == "" {
		return "", fmt.Errorf("message is required for add")
	}
	name, _ := args["name"].(string)
	if name == "" {
		name = message
		if len(name) > 30 {
			name = name[:30]
		}
	}

	sched, err := scheduleFromArgs(args)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	channel, chatID := t.channel, t.chatID
	t.mu.Unlock()
	if channel == "" || chatID == "" {
		return "", fmt.Errorf("no session context: cannot route job output")
	}

	payload := cron.Payload{
		Message: message,
		Deliver: true,
		Channel: channel,
		To:      chatID,
	}
	job, err := t.service.AddJob(name, sched, payload, sched.Kind == "at")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created job '%s' (id: %s)", job.Name, job.ID), nil
}

func (t *CronTool) list() (string, error) {
	jobs := t.service.ListJobs()
	if len(jobs) == 0 {
		return "No scheduled jobs.", nil
	}

	var sb strings.Builder
	sb.WriteString("Scheduled jobs:\n")
	for _, job := range jobs {
		fmt.Fprintf(&sb, "- %s (id: %s, %s", job.Name, job.ID, describeSchedule(job.Schedule))
		if !job.Enabled {
			sb.WriteString(", disabled")
		}
		if job.State.NextRunAtMs > 0 {
			fmt.Fprintf(&sb, ", next: %s", time.UnixMilli(job.State.NextRunAtMs).Format(time.RFC3339))
		}
		sb.WriteString(")\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (t *CronTool) remove(args map[string]interface{}) (string, error) {
	jobID, _ := args["job_id"].(string)
	if jobID == "" {
		return "", fmt.Errorf("job_id is required for remove")
	}
	removed, err := t.service.RemoveJob(jobID)
	if err != nil {
		return "", err
	}
	if !removed {
		return "", fmt.Errorf("no job with id %s", jobID)
	}
	return fmt.Sprintf("Removed job %s", jobID), nil
}

func scheduleFromArgs(args map[string]interface{}) (cron.Schedule, error) {
	if every, ok := asNumber(args["every_seconds"]); ok && every > 0 {
		return cron.Schedule{Kind: "every", EveryMs: int64(every * 1000)}, nil
	}
	if expr, ok := args["cron_expr"].(string); ok && expr != "" {
		return cron.Schedule{Kind: "cron", Expr: expr}, nil
	}
	if at, ok := args["at"].(string); ok && at != "" {
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return cron.Schedule{}, fmt.Errorf("invalid at time %q: %w", at, err)
		}
		return cron.Schedule{Kind: "at", AtMs: ts.UnixMilli()}, nil
	}
	return cron.Schedule{}, fmt.Errorf("one of every_seconds, cron_expr or at is required for add")
}

func describeSchedule(s cron.Schedule) string {
	switch s.Kind {
	case "every":
		return fmt.Sprintf("every %s", time.Duration(s.EveryMs)*time.Millisecond)
	case "cron":
		if s.Tz != "" {
			return fmt.Sprintf("cron %q %s", s.Expr, s.Tz)
		}
		return fmt.Sprintf("cron %q", s.Expr)
	case "at":
		return fmt.Sprintf("at %s", time.UnixMilli(s.AtMs).Format(time.RFC3339))
	}
	return s.Kind
}
