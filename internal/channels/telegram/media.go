package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/minibot-ai/minibot/internal/config"
)

const (
	// mediaMaxBytes is the Bot API download limit.
	mediaMaxBytes int64 = 20 * 1024 * 1024

	downloadMaxRetries = 3
)

// defaultMediaDir is where downloaded attachments are kept so the agent
// can read them back by path.
func defaultMediaDir() string {
	return filepath.Join(config.DataDir(), "media")
}

// mediaHint is the per-attachment line embedded in the message content.
func mediaHint(kind, path string) string {
	return "[" + kind + ": " + path + "]"
}

// appendMediaHints adds one hint line per downloaded attachment.
func appendMediaHints(content string, hints []string) string {
	for _, hint := range hints {
		if content != "" {
			content += "\n"
		}
		content += hint
	}
	return content
}

// resolveMedia downloads attachments from a message and returns their
// local paths plus a content hint per file. Download failures are logged
// and skipped so a broken attachment never drops the message text.
func (c *Channel) resolveMedia(ctx context.Context, message *telego.Message) (media, hints []string) {
	download := func(fileID, kind string) {
		path, err := c.downloadMedia(ctx, fileID)
		if err != nil {
			slog.Warn("failed to download telegram media", "kind", kind, "file_id", fileID, "error", err)
			return
		}
		media = append(media, path)
		hints = append(hints, mediaHint(kind, path))
	}

	// Photos arrive in multiple resolutions; the last is the largest.
	if len(message.Photo) > 0 {
		download(message.Photo[len(message.Photo)-1].FileID, "photo")
	}
	if message.Voice != nil {
		download(message.Voice.FileID, "voice")
	}
	if message.Audio != nil {
		download(message.Audio.FileID, "audio")
	}
	if message.Document != nil {
		download(message.Document.FileID, "document")
	}

	return media, hints
}

// downloadMedia fetches a file from the Bot API into the media directory
// and returns its path.
func (c *Channel) downloadMedia(ctx context.Context, fileID string) (string, error) {
	var file *telego.File
	var err error

	for attempt := 1; attempt <= downloadMaxRetries; attempt++ {
		file, err = c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
		if err == nil {
			break
		}
		if attempt < downloadMaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("get file info after %d attempts: %w", downloadMaxRetries, err)
	}
	if file.FilePath == "" {
		return "", fmt.Errorf("empty file path for file_id %s", fileID)
	}
	if int64(file.FileSize) > mediaMaxBytes {
		return "", fmt.Errorf("file too large: %d bytes (max %d)", file.FileSize, mediaMaxBytes)
	}

	downloadURL := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", c.config.Token, file.FilePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	ext := filepath.Ext(file.FilePath)
	if ext == "" {
		ext = ".bin"
	}

	if err := os.MkdirAll(c.mediaDir, 0755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(c.mediaDir, "telegram_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer tmpFile.Close()

	written, err := io.Copy(tmpFile, io.LimitReader(resp.Body, mediaMaxBytes+1))
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("write media file: %w", err)
	}
	if written > mediaMaxBytes {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("file exceeded %d bytes during download", mediaMaxBytes)
	}

	return tmpFile.Name(), nil
}

// sendMediaFile uploads a local file to a chat, as a photo when the
// extension says image, otherwise as a document.
func (c *Channel) sendMediaFile(ctx context.Context, chatID int64, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open media file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		_, err = c.bot.SendPhoto(ctx, tu.Photo(tu.ID(chatID), tu.File(f)))
	default:
		_, err = c.bot.SendDocument(ctx, tu.Document(tu.ID(chatID), tu.File(f)))
	}
	if err != nil {
		return fmt.Errorf("send media: %w", err)
	}
	return nil
}
