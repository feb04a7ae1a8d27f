package heartbeat

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty string", "", true},
		{"only blank lines", "\n\n  \n", true},
		{"only headings", "# Tasks\n## Today\n", true},
		{"html comment", "<!-- add tasks below -->\n", true},
		{"unchecked checkbox", "- [ ]\n* [ ]\n", true},
		{"checked checkbox", "- [x]\n* [x]\n", true},
		{"real task", "# Tasks\n- water the plants\n", false},
		{"checkbox with text", "- [ ] water the plants\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isEmpty(tt.content); got != tt.want {
				t.Errorf("isEmpty(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestContainsOK(t *testing.T) {
	for _, resp := range []string{"HEARTBEAT_OK", "heartbeat_ok", "HEARTBEATOK", "All clear. HEARTBEAT_OK"} {
		if !containsOK(resp) {
			t.Errorf("containsOK(%q) = false", resp)
		}
	}
	if containsOK("I watered the plants.") {
		t.Error("false positive")
	}
}

func TestBeatSkipsEmptyFile(t *testing.T) {
	ws := t.TempDir()
	os.WriteFile(filepath.Join(ws, "HEARTBEAT.md"), []byte("# Tasks\n<!-- nothing -->\n"), 0644)

	var calls atomic.Int32
	s := NewService(ws, time.Minute, true, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "HEARTBEAT_OK", nil
	})
	s.beat(context.Background())
	if calls.Load() != 0 {
		t.Error("agent triggered for empty heartbeat file")
	}
}

func TestBeatTriggersOnTasks(t *testing.T) {
	ws := t.TempDir()
	os.WriteFile(filepath.Join(ws, "HEARTBEAT.md"), []byte("- check the backups\n"), 0644)

	var gotPrompt string
	s := NewService(ws, time.Minute, true, func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "done", nil
	})
	s.beat(context.Background())
	if gotPrompt != Prompt {
		t.Errorf("prompt = %q", gotPrompt)
	}
}

func TestTickerFires(t *testing.T) {
	ws := t.TempDir()
	os.WriteFile(filepath.Join(ws, "HEARTBEAT.md"), []byte("- task\n"), 0644)

	var calls atomic.Int32
	s := NewService(ws, 30*time.Millisecond, true, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "HEARTBEAT_OK", nil
	})
	s.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if calls.Load() == 0 {
		t.Error("heartbeat never fired")
	}
}

func TestDisabledServiceDoesNothing(t *testing.T) {
	s := NewService(t.TempDir(), time.Millisecond, false, func(context.Context, string) (string, error) {
		t.Error("disabled heartbeat ran")
		return "", nil
	})
	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop()
}
