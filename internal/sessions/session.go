// Package sessions stores conversation history per channel conversation.
// Session keys are "channel:chat_id". Two backends exist: JSONL files
// (default) and SQLite.
package sessions

import (
	"time"

	"github.com/minibot-ai/minibot/internal/providers"
)

// Record is one stored message. Extra fields beyond role/content are kept
// for inspection but never sent back to the LLM.
type Record struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the history of one conversation.
type Session struct {
	Key       string                 `json:"key"`
	Messages  []Record               `json:"messages"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func newSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]interface{}{},
	}
}

// AddMessage appends a message and bumps the update time.
func (s *Session) AddMessage(role, content string) {
	s.Messages = append(s.Messages, Record{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.UpdatedAt = time.Now()
}

// History returns the last max messages projected to the LLM shape.
func (s *Session) History(max int) []providers.Message {
	msgs := s.Messages
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	out := make([]providers.Message, len(msgs))
	for i, m := range msgs {
		out[i] = providers.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// Clear drops all messages but keeps the session.
func (s *Session) Clear() {
	s.Messages = nil
	s.UpdatedAt = time.Now()
}

// Info is a lightweight session descriptor for listing.
type Info struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
