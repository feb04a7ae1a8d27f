package agent

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Skill is one entry under workspace/skills/{name}/SKILL.md. Frontmatter
// keys recognized: description, always, available.
type Skill struct {
	Name        string
	Description string
	Always      bool
	Available   bool
	Path        string
	content     string
}

// SkillsLoader scans the skills directory and caches parsed skills. A
// filesystem watcher invalidates the cache when skill files change, so
// edits show up on the next turn without a restart.
type SkillsLoader struct {
	dir string

	mu     sync.Mutex
	cache  map[string]*Skill
	loaded bool

	watcher *fsnotify.Watcher
}

func NewSkillsLoader(workspace string) *SkillsLoader {
	return &SkillsLoader{dir: filepath.Join(workspace, "skills")}
}

// Watch starts invalidating the cache on changes under the skills dir.
// Safe to call when the directory does not exist yet.
func (l *SkillsLoader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create skills watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to watch skills dir: %w", err)
	}
	l.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				slog.Debug("skills changed, reloading", "event", ev.Op.String(), "path", ev.Name)
				l.invalidate()
				// New skill dirs need their own watch for SKILL.md edits.
				if ev.Op.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						w.Add(ev.Name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("skills watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (l *SkillsLoader) Close() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

func (l *SkillsLoader) invalidate() {
	l.mu.Lock()
	l.loaded = false
	l.mu.Unlock()
}

func (l *SkillsLoader) load() map[string]*Skill {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded {
		return l.cache
	}

	skills := make(map[string]*Skill)
	entries, err := os.ReadDir(l.dir)
	if err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			path := filepath.Join(l.dir, e.Name(), "SKILL.md")
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			skill := parseSkill(e.Name(), path, string(data))
			skills[skill.Name] = skill
		}
	}
	l.cache = skills
	l.loaded = true
	return skills
}

// parseSkill extracts YAML-ish frontmatter. Only flat "key: value" lines
// are understood, which covers the skill files in the wild.
func parseSkill(name, path, content string) *Skill {
	skill := &Skill{Name: name, Path: path, Available: true, content: content}

	body := content
	if strings.HasPrefix(content, "---\n") {
		if end := strings.Index(content[4:], "\n---"); end >= 0 {
			front := content[4 : 4+end]
			body = content[4+end+4:]
			for _, line := range strings.Split(front, "\n") {
				key, value, ok := strings.Cut(line, ":")
				if !ok {
					continue
				}
				key = strings.TrimSpace(key)
				value = strings.Trim(strings.TrimSpace(value), `"'`)
				switch key {
				case "description":
					skill.Description = value
				case "always":
					skill.Always = value == "true"
				case "available":
					skill.Available = value != "false"
				}
			}
		}
	}
	skill.content = strings.TrimSpace(body)

	if skill.Description == "" {
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				skill.Description = line
				break
			}
		}
	}
	return skill
}

// List returns all skills sorted by name.
func (l *SkillsLoader) List() []*Skill {
	skills := l.load()
	out := make([]*Skill, 0, len(skills))
	for _, s := range skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AlwaysContent returns the full body of every always-loaded skill.
func (l *SkillsLoader) AlwaysContent() string {
	var parts []string
	for _, s := range l.List() {
		if s.Always && s.Available {
			parts = append(parts, fmt.Sprintf("## Skill: %s\n\n%s", s.Name, s.content))
		}
	}
	return strings.Join(parts, "\n\n")
}

// Summary lists on-demand skills one line each, for the system prompt.
func (l *SkillsLoader) Summary() string {
	var lines []string
	for _, s := range l.List() {
		if s.Always {
			continue
		}
		line := fmt.Sprintf("- %s: %s (%s)", s.Name, s.Description, s.Path)
		if !s.Available {
			line += ` [available="false"]`
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
