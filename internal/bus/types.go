package bus

import "time"

// InboundMessage represents a message received from a channel (Telegram,
// Discord, etc.) or synthesized by the scheduler. Channel "system" marks
// runtime-originated messages such as subagent completions.
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	Media     []string          `json:"media,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// SessionKey identifies the conversation this message belongs to.
func (m InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage represents a message to be sent to a channel.
// Metadata is forwarded verbatim from the triggering inbound message so
// threading-capable channels can reply in place.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	ReplyTo  string            `json:"reply_to,omitempty"`
	Media    []string          `json:"media,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Handler processes one outbound message routed to a subscribed channel.
type Handler func(OutboundMessage) error
