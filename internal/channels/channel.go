// Package channels connects messaging platforms (Telegram, Discord,
// WhatsApp) to the agent runtime via the message bus. Each adapter
// translates platform events into inbound bus messages and delivers
// outbound bus messages back to the platform.
package channels

import (
	"context"
	"strings"

	"github.com/minibot-ai/minibot/internal/bus"
)

// InternalChannels never have an adapter; outbound messages addressed to
// them are consumed elsewhere (CLI printer, agent loop system routing).
var InternalChannels = map[string]bool{
	"cli":      true,
	"system":   true,
	"subagent": true,
}

// IsInternalChannel reports whether name is an internal channel.
func IsInternalChannel(name string) bool {
	return InternalChannels[name]
}

// Channel is the interface every platform adapter implements.
type Channel interface {
	// Name returns the channel identifier ("telegram", "discord", ...).
	Name() string

	// Start begins receiving messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts the adapter down.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the adapter is actively processing.
	IsRunning() bool

	// IsAllowed checks a sender against the channel's allow-list.
	IsAllowed(senderID string) bool
}

// BaseChannel carries the state shared by all adapters. Adapter structs
// embed it.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	running   bool
	allowList []string
}

// NewBaseChannel creates the shared adapter state.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       msgBus,
		allowList: allowList,
	}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning reports the running state.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Bus returns the message bus reference.
func (c *BaseChannel) Bus() *bus.MessageBus { return c.bus }

// IsAllowed checks a sender against the allow-list. An empty allow-list
// admits everyone. Compound sender IDs of the form "123456|username"
// match when either side matches an entry; a leading "@" on an entry is
// ignored so "@alice" and "alice" are equivalent.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	idPart := senderID
	userPart := ""
	if idx := strings.Index(senderID, "|"); idx > 0 {
		idPart = senderID[:idx]
		userPart = senderID[idx+1:]
	}

	for _, allowed := range c.allowList {
		trimmed := strings.TrimPrefix(allowed, "@")
		allowedID := trimmed
		allowedUser := ""
		if idx := strings.Index(trimmed, "|"); idx > 0 {
			allowedID = trimmed[:idx]
			allowedUser = trimmed[idx+1:]
		}

		if senderID == allowed ||
			senderID == trimmed ||
			idPart == allowed ||
			idPart == trimmed ||
			idPart == allowedID ||
			(allowedUser != "" && senderID == allowedUser) ||
			(userPart != "" && (userPart == allowed || userPart == trimmed || userPart == allowedUser)) {
			return true
		}
	}

	return false
}

// HandleMessage applies the allow-list and publishes an inbound message
// to the bus. This is the standard path for adapters to forward received
// messages.
func (c *BaseChannel) HandleMessage(ctx context.Context, senderID, chatID, content string, media []string, metadata map[string]string) error {
	if !c.IsAllowed(senderID) {
		return nil
	}

	return c.bus.PublishInbound(ctx, bus.InboundMessage{
		Channel:  c.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Media:    media,
		Metadata: metadata,
	})
}

// Truncate shortens s to maxLen, appending "..." when truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
