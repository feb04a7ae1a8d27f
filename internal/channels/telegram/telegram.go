// Package telegram implements the Telegram channel adapter using the
// Bot API in long-polling mode.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/minibot-ai/minibot/internal/bus"
	"github.com/minibot-ai/minibot/internal/channels"
	"github.com/minibot-ai/minibot/internal/config"
)

// maxMessageLen is Telegram's hard limit for a single message.
const maxMessageLen = 4096

// Channel connects to Telegram via long polling.
type Channel struct {
	*channels.BaseChannel
	bot      *telego.Bot
	config   config.TelegramConfig
	mediaDir string

	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// New creates a Telegram channel from config.
func New(cfg config.TelegramConfig, msgBus *bus.MessageBus) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", msgBus, cfg.AllowFrom),
		bot:         bot,
		config:      cfg,
		mediaDir:    defaultMediaDir(),
	}, nil
}

// Start begins long polling for updates.
func (c *Channel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetRunning(true)
	slog.Info("telegram bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(pollCtx, update.Message)
				}
			}
		}
	}()

	return nil
}

// Stop cancels long polling and waits for the poll goroutine to exit so
// Telegram releases the getUpdates lock before a new instance starts.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")
	c.SetRunning(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}
	return nil
}

// Send delivers an outbound message, chunking at Telegram's length limit
// and attaching any media files.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat ID %q: %w", msg.ChatID, err)
	}

	content := msg.Content
	for len(content) > 0 {
		chunk := content
		if len(chunk) > maxMessageLen {
			cutAt := maxMessageLen
			if idx := strings.LastIndexByte(content[:maxMessageLen], '\n'); idx > maxMessageLen/2 {
				cutAt = idx + 1
			}
			chunk = content[:cutAt]
			content = content[cutAt:]
		} else {
			content = ""
		}

		if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}

	for _, path := range msg.Media {
		if err := c.sendMediaFile(ctx, chatID, path); err != nil {
			slog.Warn("failed to send telegram media", "path", path, "error", err)
		}
	}
	return nil
}

// handleMessage translates one Telegram message into an inbound bus
// message.
func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	user := message.From
	if user == nil {
		return
	}

	userID := strconv.FormatInt(user.ID, 10)
	senderID := userID
	if user.Username != "" {
		senderID = userID + "|" + user.Username
	}

	isGroup := message.Chat.Type == "group" || message.Chat.Type == "supergroup"

	// In groups only respond when the bot is addressed, by @mention or
	// by replying to one of its messages.
	if isGroup && !c.wasMentioned(message) {
		return
	}

	content := message.Text
	if message.Caption != "" {
		if content != "" {
			content += "\n"
		}
		content += message.Caption
	}

	media, hints := c.resolveMedia(ctx, message)
	if content == "" && len(media) == 0 {
		return
	}
	content = appendMediaHints(content, hints)
	if content == "" {
		content = "[media message]"
	}

	slog.Debug("telegram message received",
		"sender_id", senderID,
		"chat_id", message.Chat.ID,
		"is_group", isGroup,
		"preview", channels.Truncate(content, 50),
	)

	_ = c.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(message.Chat.ID), telego.ChatActionTyping))

	metadata := map[string]string{
		"message_id": strconv.Itoa(message.MessageID),
		"user_id":    userID,
		"username":   user.Username,
		"first_name": user.FirstName,
		"is_group":   strconv.FormatBool(isGroup),
	}

	if err := c.HandleMessage(ctx, senderID, strconv.FormatInt(message.Chat.ID, 10), content, media, metadata); err != nil {
		slog.Warn("failed to publish telegram message", "error", err)
	}
}

// wasMentioned reports whether a group message addresses the bot.
func (c *Channel) wasMentioned(message *telego.Message) bool {
	botUsername := c.bot.Username()
	if botUsername == "" {
		return false
	}
	mention := "@" + strings.ToLower(botUsername)
	if strings.Contains(strings.ToLower(message.Text), mention) ||
		strings.Contains(strings.ToLower(message.Caption), mention) {
		return true
	}
	// Replying to the bot counts as an implicit mention.
	if reply := message.ReplyToMessage; reply != nil && reply.From != nil {
		return reply.From.Username == botUsername
	}
	return false
}
