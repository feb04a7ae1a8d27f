package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestInboundFIFO(t *testing.T) {
	b := New()
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		if err := b.PublishInbound(ctx, InboundMessage{Channel: "x", ChatID: "c", Content: content}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	for _, want := range []string{"one", "two", "three"} {
		msg, ok := b.ConsumeInbound(ctx)
		if !ok {
			t.Fatal("consume returned not ok")
		}
		if msg.Content != want {
			t.Errorf("got %q, want %q", msg.Content, want)
		}
	}
}

func TestConsumeInboundCancellation(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := b.ConsumeInbound(ctx)
	if ok {
		t.Error("expected ok=false after cancellation")
	}
}

func TestPublishInboundBackpressure(t *testing.T) {
	b := NewWithSize(1)
	ctx := context.Background()

	if err := b.PublishInbound(ctx, InboundMessage{Content: "fill"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	blocked, blockedCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer blockedCancel()
	if err := b.PublishInbound(blocked, InboundMessage{Content: "overflow"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded on full queue, got %v", err)
	}
}

func TestSessionKey(t *testing.T) {
	msg := InboundMessage{Channel: "telegram", ChatID: "42"}
	if got := msg.SessionKey(); got != "telegram:42" {
		t.Errorf("SessionKey() = %q", got)
	}
}

func TestDispatchRoutesToSubscriber(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []OutboundMessage
	b.SubscribeOutbound("telegram", func(msg OutboundMessage) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, msg)
		return nil
	})

	go b.DispatchOutbound(ctx)

	meta := map[string]string{"thread_ts": "123"}
	if err := b.PublishOutbound(ctx, OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hi", Metadata: meta}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if got[0].Content != "hi" || got[0].ChatID != "42" {
		t.Errorf("unexpected message: %+v", got[0])
	}
	if got[0].Metadata["thread_ts"] != "123" {
		t.Error("metadata not preserved through dispatch")
	}
}

func TestDispatchSurvivesFailingHandler(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var delivered int
	b.SubscribeOutbound("x", func(OutboundMessage) error {
		return errors.New("boom")
	})
	b.SubscribeOutbound("x", func(OutboundMessage) error {
		panic("handler panic")
	})
	b.SubscribeOutbound("x", func(OutboundMessage) error {
		mu.Lock()
		defer mu.Unlock()
		delivered++
		return nil
	})

	go b.DispatchOutbound(ctx)

	for i := 0; i < 2; i++ {
		if err := b.PublishOutbound(ctx, OutboundMessage{Channel: "x", Content: "msg"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 2
	})
}

func TestDispatchDropsUnknownChannel(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go b.DispatchOutbound(ctx)

	if err := b.PublishOutbound(ctx, OutboundMessage{Channel: "nowhere", Content: "lost"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	waitFor(t, func() bool { return b.OutboundSize() == 0 })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
