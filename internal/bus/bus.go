package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultQueueSize bounds each queue. Producers block when the queue is
// full, which applies backpressure to channel adapters instead of growing
// memory without limit.
const DefaultQueueSize = 256

// pollInterval is how often blocked consumers re-check for cancellation.
const pollInterval = time.Second

// MessageBus decouples channel adapters from the agent runtime with two
// bounded FIFO queues. The agent loop is the sole consumer of inbound;
// the channel manager's dispatcher is the sole consumer of outbound.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string][]Handler
}

// New creates a message bus with the default queue capacity.
func New() *MessageBus {
	return NewWithSize(DefaultQueueSize)
}

// NewWithSize creates a message bus with the given queue capacity.
func NewWithSize(size int) *MessageBus {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &MessageBus{
		inbound:     make(chan InboundMessage, size),
		outbound:    make(chan OutboundMessage, size),
		subscribers: make(map[string][]Handler),
	}
}

// PublishInbound enqueues a message from a channel. Blocks when the queue
// is full until space frees up or ctx is cancelled.
func (b *MessageBus) PublishInbound(ctx context.Context, msg InboundMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case b.inbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConsumeInbound returns the next inbound message. The bool is false when
// ctx was cancelled before a message arrived.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound enqueues a response for dispatch to its channel.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) error {
	select {
	case b.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeOutbound registers a handler for messages addressed to channel.
func (b *MessageBus) SubscribeOutbound(channel string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = append(b.subscribers[channel], handler)
}

// DispatchOutbound routes outbound messages to their channel's subscribers
// until ctx is cancelled. A failing handler is logged and never stops the
// loop; messages for channels with no subscriber are dropped with a warning.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.outbound:
			b.dispatch(msg)
		case <-time.After(pollInterval):
		}
	}
}

func (b *MessageBus) dispatch(msg OutboundMessage) {
	b.mu.RLock()
	handlers := b.subscribers[msg.Channel]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		slog.Warn("no subscriber for outbound channel, dropping message",
			"channel", msg.Channel, "chat_id", msg.ChatID)
		return
	}

	for _, h := range handlers {
		if err := safeHandle(h, msg); err != nil {
			slog.Error("outbound handler failed", "channel", msg.Channel, "error", err)
		}
	}
}

// safeHandle shields the dispatch loop from panicking handlers.
func safeHandle(h Handler, msg OutboundMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("outbound handler panicked", "channel", msg.Channel, "panic", r)
		}
	}()
	return h(msg)
}

// InboundSize reports pending inbound messages.
func (b *MessageBus) InboundSize() int { return len(b.inbound) }

// OutboundSize reports pending outbound messages.
func (b *MessageBus) OutboundSize() int { return len(b.outbound) }
