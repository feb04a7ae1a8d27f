package cron

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/minibot-ai/minibot/internal/bus"
)

func newTestService(t *testing.T) (*Service, *bus.MessageBus) {
	t.Helper()
	b := bus.New()
	s := NewService(filepath.Join(t.TempDir(), "cron.json"), b)
	s.tick = 20 * time.Millisecond
	return s, b
}

func collectInbound(ctx context.Context, b *bus.MessageBus) (func() []bus.InboundMessage, func()) {
	var mu sync.Mutex
	var got []bus.InboundMessage
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, ok := b.ConsumeInbound(ctx)
			if !ok {
				return
			}
			mu.Lock()
			got = append(got, msg)
			mu.Unlock()
		}
	}()
	snapshot := func() []bus.InboundMessage {
		mu.Lock()
		defer mu.Unlock()
		out := make([]bus.InboundMessage, len(got))
		copy(out, got)
		return out
	}
	wait := func() { <-done }
	return snapshot, wait
}

func TestRecurringJobFires(t *testing.T) {
	s, b := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshot, wait := collectInbound(ctx, b)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, err := s.AddJob("ticker", Schedule{Kind: "every", EveryMs: 100},
		Payload{Message: "tick", Deliver: true, Channel: "x", To: "c"}, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	time.Sleep(350 * time.Millisecond)
	s.Stop()
	cancel()
	wait()

	got := snapshot()
	if len(got) < 2 || len(got) > 4 {
		t.Fatalf("fired %d times, want 2-4", len(got))
	}
	for _, msg := range got {
		if msg.Content != "tick" || msg.Channel != "x" || msg.ChatID != "c" {
			t.Errorf("unexpected message: %+v", msg)
		}
		if msg.SenderID != "cron" {
			t.Errorf("sender = %q", msg.SenderID)
		}
	}
}

func TestOneShotJobRemovedAfterFire(t *testing.T) {
	s, b := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshot, wait := collectInbound(ctx, b)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	at := time.Now().Add(50 * time.Millisecond).UnixMilli()
	job, err := s.AddJob("once", Schedule{Kind: "at", AtMs: at}, Payload{Message: "go"}, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	s.Stop()
	cancel()
	wait()

	got := snapshot()
	if len(got) != 1 {
		t.Fatalf("fired %d times, want 1", len(got))
	}
	if got[0].Channel != "cli" || got[0].ChatID != "cron" {
		t.Errorf("default destination: %s:%s", got[0].Channel, got[0].ChatID)
	}
	for _, j := range s.ListJobs() {
		if j.ID == job.ID {
			t.Error("one-shot job still present after firing")
		}
	}
}

func TestDeleteAfterRunRemovesJob(t *testing.T) {
	s, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	job, err := s.AddJob("oneshot", Schedule{Kind: "every", EveryMs: 50}, Payload{Message: "x"}, true)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// Drain inbound so the publish does not block.
	go func() {
		for {
			if _, ok := s.bus.ConsumeInbound(ctx); !ok {
				return
			}
		}
	}()

	time.Sleep(200 * time.Millisecond)
	for _, j := range s.ListJobs() {
		if j.ID == job.ID {
			t.Error("delete_after_run job still present")
		}
	}
}

func TestAddJobRejectsPastAtTime(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.AddJob("late", Schedule{Kind: "at", AtMs: time.Now().Add(-time.Hour).UnixMilli()}, Payload{Message: "x"}, false)
	if err == nil {
		t.Error("expected error for past at time")
	}
}

func TestRemoveJob(t *testing.T) {
	s, _ := newTestService(t)
	job, err := s.AddJob("r", Schedule{Kind: "every", EveryMs: 60000}, Payload{Message: "x"}, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	removed, err := s.RemoveJob(job.ID)
	if err != nil || !removed {
		t.Fatalf("remove: %v %v", removed, err)
	}
	removed, _ = s.RemoveJob(job.ID)
	if removed {
		t.Error("second remove reported success")
	}
}

func TestNextRunCronExpression(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	next, err := nextRun(Schedule{Kind: "cron", Expr: "0 9 * * *"}, now)
	if err != nil {
		t.Fatalf("nextRun: %v", err)
	}
	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC).UnixMilli()
	if next != want {
		t.Errorf("next = %d, want %d", next, want)
	}
}

func TestNextRunInvalidSchedules(t *testing.T) {
	now := time.Now()
	if _, err := nextRun(Schedule{Kind: "cron", Expr: "not a cron"}, now); err == nil {
		t.Error("expected error for bad expression")
	}
	if _, err := nextRun(Schedule{Kind: "every"}, now); err == nil {
		t.Error("expected error for zero every_ms")
	}
	if _, err := nextRun(Schedule{Kind: "weird"}, now); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestStorePersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cron.json")

	b := bus.New()
	s := NewService(path, b)
	s.tick = 20 * time.Millisecond
	job, err := s.AddJob("persisted", Schedule{Kind: "every", EveryMs: 60000}, Payload{Message: "hello"}, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	s2 := NewService(path, bus.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s2.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer s2.Stop()

	jobs := s2.ListJobs()
	if len(jobs) != 1 || jobs[0].ID != job.ID || jobs[0].Payload.Message != "hello" {
		t.Fatalf("unexpected jobs after reload: %+v", jobs)
	}
	if jobs[0].State.NextRunAtMs == 0 {
		t.Error("next run not recomputed on reload")
	}
}
