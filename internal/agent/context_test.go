package agent

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minibot-ai/minibot/internal/providers"
)

func TestSystemPromptSections(t *testing.T) {
	ws := t.TempDir()
	os.WriteFile(filepath.Join(ws, "AGENTS.md"), []byte("Follow the house rules."), 0644)
	os.WriteFile(filepath.Join(ws, "SOUL.md"), []byte("Be kind."), 0644)

	b := NewContextBuilder(ws)
	b.Memory().WriteLongTerm("remember this")

	prompt := b.BuildSystemPrompt()
	if !strings.Contains(prompt, "You are minibot") {
		t.Error("identity missing")
	}
	if !strings.Contains(prompt, "## AGENTS.md\n\nFollow the house rules.") {
		t.Error("bootstrap file missing")
	}
	if !strings.Contains(prompt, "## SOUL.md\n\nBe kind.") {
		t.Error("second bootstrap file missing")
	}
	if !strings.Contains(prompt, "# Memory\n\n## Long-term Memory\nremember this") {
		t.Error("memory section missing")
	}
	if !strings.Contains(prompt, "\n\n---\n\n") {
		t.Error("section separator missing")
	}
}

func TestBuildMessagesShape(t *testing.T) {
	b := NewContextBuilder(t.TempDir())
	history := []providers.Message{
		{Role: "user", Content: "earlier"},
		{Role: "assistant", Content: "reply"},
	}

	msgs := b.BuildMessages(history, "now", nil, "discord", "99")
	if len(msgs) != 4 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Errorf("first role = %q", msgs[0].Role)
	}
	if !strings.HasSuffix(msgs[0].Content, "## Current Session\nChannel: discord\nChat ID: 99") {
		t.Error("session block not appended")
	}
	if msgs[3].Role != "user" || msgs[3].Content != "now" {
		t.Errorf("last message: %+v", msgs[3])
	}
}

func TestLoadImages(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "shot.png")
	os.WriteFile(png, []byte{0x89, 'P', 'N', 'G'}, 0644)
	txt := filepath.Join(dir, "notes.txt")
	os.WriteFile(txt, []byte("not an image"), 0644)

	images := loadImages([]string{png, txt, filepath.Join(dir, "missing.jpg")})
	if len(images) != 1 {
		t.Fatalf("images = %d", len(images))
	}
	if images[0].MimeType != "image/png" {
		t.Errorf("mime = %q", images[0].MimeType)
	}
	decoded, err := base64.StdEncoding.DecodeString(images[0].Data)
	if err != nil || !bytes.Equal(decoded, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("payload mangled: %v %v", decoded, err)
	}
}

func TestLoadImagesSkipsOversized(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.jpg")
	if err := os.WriteFile(big, make([]byte, maxImageBytes+1), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if images := loadImages([]string{big}); len(images) != 0 {
		t.Errorf("oversized image not skipped")
	}
}

func TestImageMime(t *testing.T) {
	tests := map[string]string{
		"a.jpg": "image/jpeg", "b.JPEG": "image/jpeg", "c.png": "image/png",
		"d.gif": "image/gif", "e.webp": "image/webp", "f.pdf": "", "g": "",
	}
	for path, want := range tests {
		if got := imageMime(path); got != want {
			t.Errorf("imageMime(%q) = %q, want %q", path, got, want)
		}
	}
}
