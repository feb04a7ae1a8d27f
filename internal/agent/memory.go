package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MemoryStore persists agent memory under workspace/memory: MEMORY.md for
// long-term facts (full overwrite) and YYYY-MM-DD.md daily notes (append).
type MemoryStore struct {
	dir string
}

func NewMemoryStore(workspace string) *MemoryStore {
	dir := filepath.Join(workspace, "memory")
	os.MkdirAll(dir, 0755)
	return &MemoryStore{dir: dir}
}

func (m *MemoryStore) longTermPath() string {
	return filepath.Join(m.dir, "MEMORY.md")
}

func (m *MemoryStore) todayPath() string {
	return filepath.Join(m.dir, time.Now().Format("2006-01-02")+".md")
}

// ReadLongTerm returns MEMORY.md, or "" when it does not exist.
func (m *MemoryStore) ReadLongTerm() string {
	data, err := os.ReadFile(m.longTermPath())
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteLongTerm overwrites MEMORY.md.
func (m *MemoryStore) WriteLongTerm(content string) error {
	if err := os.WriteFile(m.longTermPath(), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write memory: %w", err)
	}
	return nil
}

// ReadToday returns today's notes, or "" when none exist.
func (m *MemoryStore) ReadToday() string {
	data, err := os.ReadFile(m.todayPath())
	if err != nil {
		return ""
	}
	return string(data)
}

// AppendToday appends to today's notes, creating the file with a date
// header on first write.
func (m *MemoryStore) AppendToday(content string) error {
	path := m.todayPath()
	existing, err := os.ReadFile(path)
	if err == nil {
		content = string(existing) + "\n" + content
	} else {
		content = "# " + time.Now().Format("2006-01-02") + "\n\n" + content
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write daily note: %w", err)
	}
	return nil
}

// RecentMemories concatenates the last N days of notes, newest first.
func (m *MemoryStore) RecentMemories(days int) string {
	var parts []string
	today := time.Now()
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i).Format("2006-01-02")
		data, err := os.ReadFile(filepath.Join(m.dir, date+".md"))
		if err != nil {
			continue
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Context formats memory for the system prompt: long-term memory plus
// today's notes.
func (m *MemoryStore) Context() string {
	var parts []string
	if lt := m.ReadLongTerm(); lt != "" {
		parts = append(parts, "## Long-term Memory\n"+lt)
	}
	if today := m.ReadToday(); today != "" {
		parts = append(parts, "## Today's Notes\n"+today)
	}
	return strings.Join(parts, "\n\n")
}
