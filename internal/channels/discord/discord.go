// Package discord implements the Discord channel adapter over the
// gateway API.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/minibot-ai/minibot/internal/bus"
	"github.com/minibot-ai/minibot/internal/channels"
	"github.com/minibot-ai/minibot/internal/config"
)

// maxMessageLen is Discord's limit for a single message.
const maxMessageLen = 2000

// Channel connects to Discord via gateway events.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	config    config.DiscordConfig
	botUserID string
}

// New creates a Discord channel from config.
func New(cfg config.DiscordConfig, msgBus *bus.MessageBus) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", msgBus, cfg.AllowFrom),
		session:     session,
		config:      cfg,
	}, nil
}

// Start opens the gateway connection and begins receiving events.
func (c *Channel) Start(ctx context.Context) error {
	c.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		c.handleMessage(ctx, m)
	})

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID

	c.SetRunning(true)
	slog.Info("discord bot connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord bot")
	c.SetRunning(false)
	return c.session.Close()
}

// Send delivers an outbound message, splitting at Discord's length
// limit.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat ID for discord send")
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

		if _, err := c.session.ChannelMessageSend(msg.ChatID, chunk); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}

// handleMessage translates one gateway message into an inbound bus
// message.
func (c *Channel) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == c.botUserID || m.Author.Bot {
		return
	}

	isDM := m.GuildID == ""

	// In guild channels only respond when the bot is @mentioned.
	if !isDM && !c.mentionsBot(m) {
		return
	}

	content := m.Content
	for _, att := range m.Attachments {
		if content != "" {
			content += "\n"
		}
		content += fmt.Sprintf("[attachment: %s]", att.URL)
	}
	if content == "" {
		return
	}

	slog.Debug("discord message received",
		"sender_id", m.Author.ID,
		"channel_id", m.ChannelID,
		"is_dm", isDM,
		"preview", channels.Truncate(content, 50),
	)

	_ = c.session.ChannelTyping(m.ChannelID)

	metadata := map[string]string{
		"message_id": m.ID,
		"user_id":    m.Author.ID,
		"username":   m.Author.Username,
		"guild_id":   m.GuildID,
		"is_dm":      fmt.Sprintf("%t", isDM),
	}

	if err := c.HandleMessage(ctx, m.Author.ID, m.ChannelID, content, nil, metadata); err != nil {
		slog.Warn("failed to publish discord message", "error", err)
	}
}

// mentionsBot reports whether the message @mentions the bot user.
func (c *Channel) mentionsBot(m *discordgo.MessageCreate) bool {
	for _, u := range m.Mentions {
		if u.ID == c.botUserID {
			return true
		}
	}
	return false
}
