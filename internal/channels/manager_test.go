package channels

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/minibot-ai/minibot/internal/bus"
)

// fakeChannel records sent messages.
type fakeChannel struct {
	*BaseChannel
	mu   sync.Mutex
	sent []bus.OutboundMessage
}

func newFakeChannel(name string, b *bus.MessageBus) *fakeChannel {
	return &fakeChannel{BaseChannel: NewBaseChannel(name, b, nil)}
}

func (c *fakeChannel) Start(_ context.Context) error {
	c.SetRunning(true)
	return nil
}

func (c *fakeChannel) Stop(_ context.Context) error {
	c.SetRunning(false)
	return nil
}

func (c *fakeChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestManagerRoutesOutbound(t *testing.T) {
	b := bus.New()
	m := NewManager(b)
	ch := newFakeChannel("fake", b)
	m.RegisterChannel(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.StopAll(ctx)

	if err := b.PublishOutbound(ctx, bus.OutboundMessage{Channel: "fake", ChatID: "1", Content: "hi"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ch.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if ch.sentCount() != 1 {
		t.Fatalf("sent = %d", ch.sentCount())
	}

	ch.mu.Lock()
	got := ch.sent[0]
	ch.mu.Unlock()
	if got.Content != "hi" || got.ChatID != "1" {
		t.Errorf("delivered = %+v", got)
	}
}

func TestManagerUnknownChannelDoesNotBlock(t *testing.T) {
	b := bus.New()
	m := NewManager(b)
	ch := newFakeChannel("known", b)
	m.RegisterChannel(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.StopAll(ctx)

	// No subscriber for this channel; the dispatcher drops it with a
	// warning and keeps going.
	b.PublishOutbound(ctx, bus.OutboundMessage{Channel: "ghost", ChatID: "1", Content: "lost"})
	b.PublishOutbound(ctx, bus.OutboundMessage{Channel: "known", ChatID: "2", Content: "delivered"})

	deadline := time.Now().Add(2 * time.Second)
	for ch.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if ch.sentCount() != 1 {
		t.Fatalf("sent = %d", ch.sentCount())
	}
}

func TestManagerStatus(t *testing.T) {
	b := bus.New()
	m := NewManager(b)
	m.RegisterChannel(newFakeChannel("a", b))
	m.RegisterChannel(newFakeChannel("b", b))

	ctx := context.Background()
	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	status := m.Status()
	if !status["a"] || !status["b"] {
		t.Errorf("status = %v", status)
	}

	m.StopAll(ctx)
	status = m.Status()
	if status["a"] || status["b"] {
		t.Errorf("status after stop = %v", status)
	}
}

func TestSendToChannelUnknown(t *testing.T) {
	m := NewManager(bus.New())
	if err := m.SendToChannel(context.Background(), "nope", "1", "hi"); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestSendLimiterAllowsBurst(t *testing.T) {
	l := NewSendLimiter(time.Second)
	start := time.Now()
	for i := 0; i < sendBurst; i++ {
		if !l.Reserve("chat:1") {
			t.Fatalf("reserve %d failed", i)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("burst was throttled: %v", elapsed)
	}
}
