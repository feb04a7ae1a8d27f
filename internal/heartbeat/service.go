// Package heartbeat periodically wakes the agent to act on HEARTBEAT.md.
package heartbeat

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultInterval between heartbeats.
const DefaultInterval = 30 * time.Minute

// Prompt injected into the agent on every non-empty heartbeat.
const Prompt = `Read HEARTBEAT.md in your workspace (if it exists).
Follow any instructions or tasks listed there.
If nothing needs attention, reply with just: HEARTBEAT_OK`

const okToken = "HEARTBEAT_OK"

// OnHeartbeat runs one agent turn for the heartbeat prompt.
type OnHeartbeat func(ctx context.Context, prompt string) (string, error)

// Service ticks at a fixed interval and triggers the agent when the
// workspace heartbeat file has actionable content.
type Service struct {
	workspace   string
	onHeartbeat OnHeartbeat
	interval    time.Duration
	enabled     bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(workspace string, interval time.Duration, enabled bool, fn OnHeartbeat) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		workspace:   workspace,
		onHeartbeat: fn,
		interval:    interval,
		enabled:     enabled,
	}
}

func (s *Service) file() string {
	return filepath.Join(s.workspace, "HEARTBEAT.md")
}

// Start begins ticking. Disabled services start as a no-op.
func (s *Service) Start(ctx context.Context) {
	if !s.enabled {
		slog.Info("heartbeat disabled")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx)
	slog.Info("heartbeat started", "interval", s.interval)
}

func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.beat(ctx)
		}
	}
}

func (s *Service) beat(ctx context.Context) {
	data, err := os.ReadFile(s.file())
	if err != nil || isEmpty(string(data)) {
		slog.Debug("heartbeat: no tasks")
		return
	}

	slog.Info("heartbeat: checking for tasks")
	response, err := s.onHeartbeat(ctx, Prompt)
	if err != nil {
		slog.Error("heartbeat failed", "error", err)
		return
	}
	if containsOK(response) {
		slog.Info("heartbeat: ok, no action needed")
		return
	}
	slog.Info("heartbeat: completed task")
}

// TriggerNow runs one heartbeat turn immediately, regardless of the file.
func (s *Service) TriggerNow(ctx context.Context) (string, error) {
	return s.onHeartbeat(ctx, Prompt)
}

// isEmpty reports whether the heartbeat file has no actionable content.
// Blank lines, headings, HTML comments and empty or checked checkboxes do
// not count as tasks.
func isEmpty(content string) bool {
	skip := map[string]bool{
		"- [ ]": true, "* [ ]": true,
		"- [x]": true, "* [x]": true,
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "<!--") || skip[line] {
			continue
		}
		return false
	}
	return true
}

// containsOK matches the OK token loosely; models sometimes drop the
// underscore.
func containsOK(response string) bool {
	normalized := strings.ReplaceAll(strings.ToUpper(response), "_", "")
	return strings.Contains(normalized, strings.ReplaceAll(okToken, "_", ""))
}
