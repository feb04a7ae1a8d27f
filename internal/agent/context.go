package agent

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/minibot-ai/minibot/internal/providers"
)

// Bootstrap files that shape the agent, loaded from the workspace root in
// this order.
var bootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "TOOLS.md", "IDENTITY.md"}

const maxImageBytes = 10 * 1024 * 1024

// ContextBuilder assembles the system prompt and message list for a turn
// from bootstrap files, memory, skills and conversation history.
type ContextBuilder struct {
	workspace string
	memory    *MemoryStore
	skills    *SkillsLoader
}

func NewContextBuilder(workspace string) *ContextBuilder {
	return &ContextBuilder{
		workspace: workspace,
		memory:    NewMemoryStore(workspace),
		skills:    NewSkillsLoader(workspace),
	}
}

// Memory exposes the builder's memory store.
func (b *ContextBuilder) Memory() *MemoryStore { return b.memory }

// Skills exposes the builder's skills loader.
func (b *ContextBuilder) Skills() *SkillsLoader { return b.skills }

// BuildSystemPrompt joins identity, bootstrap files, memory and skills
// with section separators.
func (b *ContextBuilder) BuildSystemPrompt() string {
	parts := []string{b.identity()}

	if bootstrap := b.loadBootstrapFiles(); bootstrap != "" {
		parts = append(parts, bootstrap)
	}
	if memory := b.memory.Context(); memory != "" {
		parts = append(parts, "# Memory\n\n"+memory)
	}
	if active := b.skills.AlwaysContent(); active != "" {
		parts = append(parts, "# Active Skills\n\n"+active)
	}
	if summary := b.skills.Summary(); summary != "" {
		parts = append(parts, fmt.Sprintf(`# Skills

The following skills extend your capabilities. To use a skill, read its SKILL.md file using the read_file tool.
Skills with available="false" need dependencies installed first - you can try installing them with apt/brew.

%s`, summary))
	}

	return strings.Join(parts, "\n\n---\n\n")
}

func (b *ContextBuilder) identity() string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")
	workspace, err := filepath.Abs(b.workspace)
	if err != nil {
		workspace = b.workspace
	}

	return fmt.Sprintf(`# minibot

You are minibot, a helpful AI assistant. You have access to tools that allow you to:
- Read, write, and edit files
- Execute shell commands
- Search the web and fetch web pages
- Send messages to users on chat channels
- Spawn subagents for complex background tasks

## Current Time
%s

## Runtime
%s %s, Go %s

## Workspace
Your workspace is at: %s
- Memory files: %s/memory/MEMORY.md
- Daily notes: %s/memory/YYYY-MM-DD.md
- Custom skills: %s/skills/{skill-name}/SKILL.md

IMPORTANT: When responding to direct questions or conversations, reply directly with your text response.
Only use the 'message' tool when you need to send a message to a specific chat channel (like WhatsApp).
For normal conversation, just respond with text - do not call the message tool.

Always be helpful, accurate, and concise. When using tools, explain what you're doing.
When remembering something, write to %s/memory/MEMORY.md`,
		now,
		runtime.GOOS, runtime.GOARCH, strings.TrimPrefix(runtime.Version(), "go"),
		workspace, workspace, workspace, workspace, workspace)
}

func (b *ContextBuilder) loadBootstrapFiles() string {
	var parts []string
	for _, name := range bootstrapFiles {
		data, err := os.ReadFile(filepath.Join(b.workspace, name))
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", name, string(data)))
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages assembles the full LLM message list: system prompt,
// history tail, then the current user message with any image attachments.
func (b *ContextBuilder) BuildMessages(history []providers.Message, current string, media []string, channel, chatID string) []providers.Message {
	systemPrompt := b.BuildSystemPrompt()
	if channel != "" && chatID != "" {
		systemPrompt += fmt.Sprintf("\n\n## Current Session\nChannel: %s\nChat ID: %s", channel, chatID)
	}

	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, providers.Message{
		Role:    "user",
		Content: current,
		Images:  loadImages(media),
	})
	return messages
}

// loadImages reads local image files and base64-encodes them. Non-image
// paths and oversized files are skipped.
func loadImages(media []string) []providers.ImageContent {
	var images []providers.ImageContent
	for _, path := range media {
		mime := imageMime(path)
		if mime == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.Size() > maxImageBytes {
			slog.Warn("image too large, skipping", "path", path, "size", info.Size())
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("failed to read image", "path", path, "error", err)
			continue
		}
		images = append(images, providers.ImageContent{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(data),
		})
	}
	return images
}

func imageMime(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return ""
}
