// Package whatsapp implements the WhatsApp channel adapter. It talks to
// an external bridge process (whatsapp-web.js based) over a WebSocket;
// the bridge owns the actual WhatsApp protocol and this adapter just
// exchanges JSON frames with it.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minibot-ai/minibot/internal/bus"
	"github.com/minibot-ai/minibot/internal/channels"
	"github.com/minibot-ai/minibot/internal/config"
)

const maxReconnectBackoff = 30 * time.Second

// Channel connects to a WhatsApp bridge via WebSocket.
type Channel struct {
	*channels.BaseChannel
	config config.WhatsAppConfig

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// bridgeFrame is the JSON envelope exchanged with the bridge.
type bridgeFrame struct {
	Type     string   `json:"type"`
	From     string   `json:"from,omitempty"`
	FromName string   `json:"from_name,omitempty"`
	Chat     string   `json:"chat,omitempty"`
	To       string   `json:"to,omitempty"`
	Content  string   `json:"content,omitempty"`
	ID       string   `json:"id,omitempty"`
	Media    []string `json:"media,omitempty"`
}

// New creates a WhatsApp channel from config.
func New(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridgeUrl is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus, cfg.AllowFrom),
		config:      cfg,
	}, nil
}

// Start connects to the bridge and begins listening. A failed initial
// connection is not fatal; the listen loop keeps retrying.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "bridge_url", c.config.BridgeURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop shuts down the bridge connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound message to the bridge.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}

	data, err := json.Marshal(bridgeFrame{
		Type:    "message",
		To:      msg.ChatID,
		Content: msg.Content,
		Media:   msg.Media,
	})
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	return nil
}

// connect dials the bridge WebSocket.
func (c *Channel) connect() error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.config.BridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.config.BridgeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", c.config.BridgeURL)
	return nil
}

// listenLoop reads frames from the bridge, reconnecting with exponential
// backoff after any failure.
func (c *Channel) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, maxReconnectBackoff)
				continue
			}
			backoff = time.Second
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp read error, will reconnect", "error", err)
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			continue
		}

		var frame bridgeFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			slog.Warn("invalid whatsapp bridge frame", "error", err)
			continue
		}
		if frame.Type == "message" {
			c.handleIncoming(frame)
		}
	}
}

// handleIncoming translates one bridge frame into an inbound bus
// message.
func (c *Channel) handleIncoming(frame bridgeFrame) {
	if frame.From == "" {
		return
	}

	chatID := frame.Chat
	if chatID == "" {
		chatID = frame.From
	}

	content := frame.Content
	if content == "" && len(frame.Media) == 0 {
		return
	}
	if content == "" {
		content = "[media message]"
	}

	metadata := make(map[string]string)
	if frame.ID != "" {
		metadata["message_id"] = frame.ID
	}
	if frame.FromName != "" {
		metadata["user_name"] = frame.FromName
	}

	slog.Debug("whatsapp message received",
		"sender_id", frame.From,
		"chat_id", chatID,
		"preview", channels.Truncate(content, 50),
	)

	if err := c.HandleMessage(c.ctx, frame.From, chatID, content, frame.Media, metadata); err != nil {
		slog.Warn("failed to publish whatsapp message", "error", err)
	}
}
