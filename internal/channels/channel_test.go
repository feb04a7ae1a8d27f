package channels

import (
	"context"
	"testing"
	"time"

	"github.com/minibot-ai/minibot/internal/bus"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowList []string
		senderID  string
		want      bool
	}{
		{"empty list allows everyone", nil, "12345", true},
		{"plain id match", []string{"12345"}, "12345", true},
		{"plain id mismatch", []string{"12345"}, "67890", false},
		{"compound sender, id in list", []string{"12345"}, "12345|alice", true},
		{"compound sender, username in list", []string{"alice"}, "12345|alice", true},
		{"compound sender, at-prefixed username", []string{"@alice"}, "12345|alice", true},
		{"compound list entry, id matches", []string{"12345|alice"}, "12345", true},
		{"compound list entry, username matches", []string{"12345|alice"}, "99|alice", true},
		{"compound both sides mismatch", []string{"12345|alice"}, "99|bob", false},
		{"at-prefixed entry, bare sender", []string{"@bob"}, "bob", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBaseChannel("test", bus.New(), tt.allowList)
			if got := c.IsAllowed(tt.senderID); got != tt.want {
				t.Errorf("IsAllowed(%q) with %v = %v, want %v", tt.senderID, tt.allowList, got, tt.want)
			}
		})
	}
}

func TestHandleMessagePublishes(t *testing.T) {
	b := bus.New()
	c := NewBaseChannel("testchan", b, nil)

	err := c.HandleMessage(context.Background(), "u1", "chat9", "hello", []string{"/tmp/a.png"}, map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := b.ConsumeInbound(ctx)
	if !ok {
		t.Fatal("no inbound message")
	}
	if msg.Channel != "testchan" || msg.SenderID != "u1" || msg.ChatID != "chat9" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Metadata["k"] != "v" || len(msg.Media) != 1 {
		t.Errorf("metadata/media lost: %+v", msg)
	}
}

func TestHandleMessageBlocksDisallowedSender(t *testing.T) {
	b := bus.New()
	c := NewBaseChannel("testchan", b, []string{"allowed-user"})

	if err := c.HandleMessage(context.Background(), "intruder", "chat", "hi", nil, nil); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if b.InboundSize() != 0 {
		t.Error("disallowed sender's message was published")
	}
}

func TestIsInternalChannel(t *testing.T) {
	for _, name := range []string{"cli", "system", "subagent"} {
		if !IsInternalChannel(name) {
			t.Errorf("%s not internal", name)
		}
	}
	if IsInternalChannel("telegram") {
		t.Error("telegram flagged internal")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("short string changed: %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("truncated = %q", got)
	}
}
