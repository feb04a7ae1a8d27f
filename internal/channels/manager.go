package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/minibot-ai/minibot/internal/bus"
)

// Manager owns the registered channel adapters: it starts and stops
// them, and routes outbound bus messages to the right adapter with
// per-chat rate limiting.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	bus      *bus.MessageBus
	limiter  *SendLimiter

	dispatchCancel context.CancelFunc
	dispatchDone   chan struct{}
}

// NewManager creates a channel manager. Adapters are registered
// externally via RegisterChannel before StartAll.
func NewManager(msgBus *bus.MessageBus) *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		bus:      msgBus,
		limiter:  NewSendLimiter(time.Second),
	}
}

// RegisterChannel adds an adapter and subscribes it to outbound traffic
// for its channel name.
func (m *Manager) RegisterChannel(ch Channel) {
	m.mu.Lock()
	m.channels[ch.Name()] = ch
	m.mu.Unlock()

	name := ch.Name()
	m.bus.SubscribeOutbound(name, func(msg bus.OutboundMessage) error {
		return m.deliver(name, msg)
	})
}

// GetChannel returns an adapter by name.
func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// EnabledChannels returns the names of all registered adapters.
func (m *Manager) EnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// Status reports the running state of every adapter.
func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		status[name] = ch.IsRunning()
	}
	return status
}

// StartAll starts the outbound dispatcher and every registered adapter.
// An adapter that fails to start is logged and skipped; the rest keep
// running.
func (m *Manager) StartAll(ctx context.Context) error {
	dispatchCtx, cancel := context.WithCancel(ctx)
	m.dispatchCancel = cancel
	m.dispatchDone = make(chan struct{})
	go func() {
		defer close(m.dispatchDone)
		m.bus.DispatchOutbound(dispatchCtx)
	}()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.channels) == 0 {
		slog.Warn("no channels enabled")
		return nil
	}

	for name, ch := range m.channels {
		slog.Info("starting channel", "channel", name)
		if err := ch.Start(ctx); err != nil {
			slog.Error("failed to start channel", "channel", name, "error", err)
		}
	}
	return nil
}

// StopAll stops every adapter, then the outbound dispatcher. Adapters go
// first so no new inbound traffic arrives while queued replies drain.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	for name, ch := range m.channels {
		slog.Info("stopping channel", "channel", name)
		if err := ch.Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
		}
	}
	m.mu.RUnlock()

	if m.dispatchCancel != nil {
		m.dispatchCancel()
		<-m.dispatchDone
		m.dispatchCancel = nil
	}
	return nil
}

// SendToChannel delivers a message directly to a named adapter,
// bypassing the bus. Used by CLI commands that talk to one channel.
func (m *Manager) SendToChannel(ctx context.Context, channel, chatID, content string) error {
	ch, ok := m.GetChannel(channel)
	if !ok {
		return fmt.Errorf("channel %s not found", channel)
	}
	return ch.Send(ctx, bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
	})
}

// deliver routes one outbound message to its adapter, applying the
// per-chat send limiter first.
func (m *Manager) deliver(name string, msg bus.OutboundMessage) error {
	ch, ok := m.GetChannel(name)
	if !ok {
		return fmt.Errorf("channel %s not registered", name)
	}
	if !ch.IsRunning() {
		return fmt.Errorf("channel %s not running", name)
	}

	m.limiter.Reserve(name + ":" + msg.ChatID)
	return ch.Send(context.Background(), msg)
}
