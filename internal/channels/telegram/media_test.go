package telegram

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestMediaHint(t *testing.T) {
	got := mediaHint("photo", "/data/media/telegram_abc.jpg")
	want := "[photo: /data/media/telegram_abc.jpg]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAppendMediaHints(t *testing.T) {
	hints := []string{"[photo: /m/a.jpg]", "[document: /m/b.pdf]"}

	got := appendMediaHints("look at these", hints)
	want := "look at these\n[photo: /m/a.jpg]\n[document: /m/b.pdf]"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// No leading newline when the message had no text.
	got = appendMediaHints("", hints[:1])
	if got != "[photo: /m/a.jpg]" {
		t.Fatalf("got %q", got)
	}

	if got := appendMediaHints("just text", nil); got != "just text" {
		t.Fatalf("got %q", got)
	}
}

func TestDefaultMediaDirUnderDataDir(t *testing.T) {
	dir := defaultMediaDir()
	if !strings.HasSuffix(dir, filepath.Join(".minibot", "media")) {
		t.Fatalf("media dir %q is not under the data dir", dir)
	}
}
