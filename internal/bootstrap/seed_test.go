package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureWorkspaceFilesSeedsAll(t *testing.T) {
	ws := t.TempDir()

	created, err := EnsureWorkspaceFiles(ws)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(created) != len(templateFiles) {
		t.Errorf("created = %v", created)
	}
	for _, name := range templateFiles {
		if _, err := os.Stat(filepath.Join(ws, name)); err != nil {
			t.Errorf("%s not seeded: %v", name, err)
		}
	}
}

func TestEnsureWorkspaceFilesNeverOverwrites(t *testing.T) {
	ws := t.TempDir()
	custom := []byte("my own instructions")
	if err := os.WriteFile(filepath.Join(ws, AgentsFile), custom, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	created, err := EnsureWorkspaceFiles(ws)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, name := range created {
		if name == AgentsFile {
			t.Error("existing AGENTS.md was re-seeded")
		}
	}

	got, _ := os.ReadFile(filepath.Join(ws, AgentsFile))
	if string(got) != string(custom) {
		t.Error("existing file content changed")
	}
}

func TestReadTemplate(t *testing.T) {
	content, err := ReadTemplate(SoulFile)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	if content == "" {
		t.Error("empty template")
	}
	if _, err := ReadTemplate("NOPE.md"); err == nil {
		t.Error("expected error for unknown template")
	}
}
