package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/minibot-ai/minibot/internal/bus"
)

const tickInterval = time.Second

// Default destination for jobs that do not name a delivery target.
const (
	defaultChannel = "cli"
	defaultChatID  = "cron"
)

// Service schedules jobs and injects their payloads as inbound messages.
// All store mutations go through the service mutex, whether they originate
// from the cron tool, the CLI or the ticker itself.
type Service struct {
	bus   *bus.MessageBus
	store *Store
	tick  time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewService(storePath string, b *bus.MessageBus) *Service {
	return &Service{bus: b, store: NewStore(storePath), tick: tickInterval}
}

// Start loads persisted jobs, recomputes their next runs and begins
// ticking. Missed windows are skipped, not replayed.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if err := s.store.Load(); err != nil {
		return err
	}
	now := time.Now()
	for _, job := range s.store.List() {
		s.refreshNextRun(job, now)
	}
	if err := s.store.Save(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	go s.run(runCtx)

	slog.Info("cron service started", "jobs", len(s.store.jobs))
	return nil
}

// Open loads the persisted jobs without starting the ticker. CLI
// commands use this to inspect and mutate the store in place.
func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load()
}

// Stop cancels the ticker and waits for the loop to drain.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.started = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fireDue(ctx, time.Now())
		}
	}
}

func (s *Service) fireDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := now.UnixMilli()
	dirty := false
	for _, job := range s.store.List() {
		if !job.Enabled || job.State.NextRunAtMs == 0 || job.State.NextRunAtMs > nowMs {
			continue
		}
		s.fire(ctx, job, now)
		if job.Schedule.Kind == "at" || job.DeleteAfterRun {
			s.store.Remove(job.ID)
		} else {
			s.refreshNextRun(job, now)
		}
		dirty = true
	}
	if dirty {
		if err := s.store.Save(); err != nil {
			slog.Error("failed to persist cron store", "error", err)
		}
	}
}

// fire publishes the job payload as an inbound message.
func (s *Service) fire(ctx context.Context, job *Job, now time.Time) {
	channel, chatID := defaultChannel, defaultChatID
	if job.Payload.Deliver && job.Payload.Channel != "" && job.Payload.To != "" {
		channel, chatID = job.Payload.Channel, job.Payload.To
	}

	msg := bus.InboundMessage{
		Channel:  channel,
		SenderID: "cron",
		ChatID:   chatID,
		Content:  job.Payload.Message,
		Metadata: map[string]string{"cron_job_id": job.ID},
	}

	job.State.LastRunAtMs = now.UnixMilli()
	if err := s.bus.PublishInbound(ctx, msg); err != nil {
		job.State.LastStatus = "error"
		job.State.LastError = err.Error()
		slog.Error("cron job failed to publish", "job", job.Name, "id", job.ID, "error", err)
		return
	}
	job.State.LastStatus = "ok"
	job.State.LastError = ""
	slog.Info("cron job fired", "job", job.Name, "id", job.ID, "channel", channel, "chat_id", chatID)
}

// refreshNextRun recomputes next_run_at_ms from now. One-shot jobs whose
// time already passed are marked skipped and disabled.
func (s *Service) refreshNextRun(job *Job, now time.Time) {
	next, err := nextRun(job.Schedule, now)
	if err != nil {
		job.State.NextRunAtMs = 0
		job.State.LastStatus = "error"
		job.State.LastError = err.Error()
		slog.Warn("cron job has invalid schedule", "job", job.Name, "id", job.ID, "error", err)
		return
	}
	if next == 0 && job.Schedule.Kind == "at" {
		job.Enabled = false
		job.State.LastStatus = "skipped"
	}
	job.State.NextRunAtMs = next
}

// nextRun returns the next fire time in ms, or 0 when the job will never
// fire again.
func nextRun(sched Schedule, now time.Time) (int64, error) {
	switch sched.Kind {
	case "at":
		if sched.AtMs <= now.UnixMilli() {
			return 0, nil
		}
		return sched.AtMs, nil
	case "every":
		if sched.EveryMs <= 0 {
			return 0, fmt.Errorf("every_ms must be positive")
		}
		return now.UnixMilli() + sched.EveryMs, nil
	case "cron":
		ref := now
		if sched.Tz != "" {
			loc, err := time.LoadLocation(sched.Tz)
			if err != nil {
				return 0, fmt.Errorf("invalid timezone %q: %w", sched.Tz, err)
			}
			ref = now.In(loc)
		}
		next, err := gronx.NextTickAfter(sched.Expr, ref, false)
		if err != nil {
			return 0, fmt.Errorf("invalid cron expression %q: %w", sched.Expr, err)
		}
		return next.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("unknown schedule kind %q", sched.Kind)
	}
}

// AddJob registers a job and persists it. Validation happens through the
// first next-run computation.
func (s *Service) AddJob(name string, sched Schedule, payload Payload, deleteAfterRun bool) (*Job, error) {
	now := time.Now()
	next, err := nextRun(sched, now)
	if err != nil {
		return nil, err
	}
	if sched.Kind == "at" && next == 0 {
		return nil, fmt.Errorf("at time is in the past")
	}

	job := &Job{
		ID:             uuid.NewString()[:8],
		Name:           name,
		Enabled:        true,
		Schedule:       sched,
		Payload:        payload,
		State:          JobState{NextRunAtMs: next},
		CreatedAtMs:    now.UnixMilli(),
		UpdatedAtMs:    now.UnixMilli(),
		DeleteAfterRun: deleteAfterRun,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Put(job)
	if err := s.store.Save(); err != nil {
		s.store.Remove(job.ID)
		return nil, err
	}
	slog.Info("cron job added", "job", name, "id", job.ID, "kind", sched.Kind)
	return job, nil
}

// ListJobs returns a snapshot of all jobs.
func (s *Service) ListJobs() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.store.List()
	out := make([]*Job, len(jobs))
	for i, job := range jobs {
		copied := *job
		out[i] = &copied
	}
	return out
}

// RemoveJob deletes a job by ID. Returns false when no such job exists.
func (s *Service) RemoveJob(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.store.Remove(id) {
		return false, nil
	}
	if err := s.store.Save(); err != nil {
		return true, err
	}
	slog.Info("cron job removed", "id", id)
	return true, nil
}
