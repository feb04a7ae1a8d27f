package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReadEditList(t *testing.T) {
	ws := t.TempDir()
	ctx := context.Background()

	write := NewWriteFileTool(ws, true)
	out, err := write.Execute(ctx, map[string]interface{}{"path": "notes/a.txt", "content": "hello"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if out != "Wrote 5 bytes to notes/a.txt" {
		t.Errorf("write output: %q", out)
	}

	read := NewReadFileTool(ws, true)
	out, err = read.Execute(ctx, map[string]interface{}{"path": "notes/a.txt"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out != "hello" {
		t.Errorf("read output: %q", out)
	}

	edit := NewEditFileTool(ws, true)
	out, err = edit.Execute(ctx, map[string]interface{}{
		"path": "notes/a.txt", "old_text": "hello", "new_text": "goodbye",
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if out != "Edited notes/a.txt" {
		t.Errorf("edit output: %q", out)
	}

	data, _ := os.ReadFile(filepath.Join(ws, "notes", "a.txt"))
	if string(data) != "goodbye" {
		t.Errorf("file content: %q", data)
	}

	list := NewListDirTool(ws, true)
	out, err = list.Execute(ctx, map[string]interface{}{"path": "notes"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "a.txt" {
		t.Errorf("list output: %q", out)
	}
}

func TestEditMissingOldText(t *testing.T) {
	ws := t.TempDir()
	os.WriteFile(filepath.Join(ws, "f.txt"), []byte("abc"), 0644)

	edit := NewEditFileTool(ws, true)
	_, err := edit.Execute(context.Background(), map[string]interface{}{
		"path": "f.txt", "old_text": "xyz", "new_text": "q",
	})
	if err == nil || !strings.Contains(err.Error(), "old_text not found") {
		t.Errorf("err = %v", err)
	}
}

func TestListEmptyDirectory(t *testing.T) {
	ws := t.TempDir()
	list := NewListDirTool(ws, true)
	out, err := list.Execute(context.Background(), map[string]interface{}{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "(empty directory)" {
		t.Errorf("got %q", out)
	}
}

func TestRestrictBlocksEscape(t *testing.T) {
	ws := t.TempDir()
	outside := t.TempDir()
	os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0644)

	read := NewReadFileTool(ws, true)

	for _, path := range []string{
		"../escape.txt",
		filepath.Join(outside, "secret.txt"),
	} {
		_, err := read.Execute(context.Background(), map[string]interface{}{"path": path})
		if err == nil || !strings.Contains(err.Error(), "access denied") {
			t.Errorf("path %q: err = %v", path, err)
		}
	}
}

func TestRestrictBlocksSymlinkEscape(t *testing.T) {
	ws := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "target.txt")
	os.WriteFile(target, []byte("s"), 0644)
	if err := os.Symlink(target, filepath.Join(ws, "link.txt")); err != nil {
		t.Skipf("symlink not supported: %v", err)
	}

	read := NewReadFileTool(ws, true)
	_, err := read.Execute(context.Background(), map[string]interface{}{"path": "link.txt"})
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("err = %v", err)
	}
}

func TestUnrestrictedAllowsAbsolutePaths(t *testing.T) {
	ws := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "open.txt")
	os.WriteFile(target, []byte("visible"), 0644)

	read := NewReadFileTool(ws, false)
	out, err := read.Execute(context.Background(), map[string]interface{}{"path": target})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out != "visible" {
		t.Errorf("got %q", out)
	}
}
