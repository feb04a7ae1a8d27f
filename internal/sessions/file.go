package sessions

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileStore keeps one JSONL file per session. The first line is a metadata
// record, each following line is one message.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

type metadataLine struct {
	Type      string                 `json:"_type"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, safeKey(key)+".jsonl")
}

func (f *FileStore) Load(key string) (*Session, error) {
	file, err := os.Open(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer file.Close()

	s := newSession(key)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var probe struct {
			Type string `json:"_type"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			return nil, fmt.Errorf("failed to parse session line: %w", err)
		}
		if probe.Type == "metadata" {
			var meta metadataLine
			if err := json.Unmarshal(line, &meta); err != nil {
				return nil, fmt.Errorf("failed to parse session metadata: %w", err)
			}
			if !meta.CreatedAt.IsZero() {
				s.CreatedAt = meta.CreatedAt
			}
			if !meta.UpdatedAt.IsZero() {
				s.UpdatedAt = meta.UpdatedAt
			}
			if meta.Metadata != nil {
				s.Metadata = meta.Metadata
			}
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse session message: %w", err)
		}
		s.Messages = append(s.Messages, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	return s, nil
}

// Save rewrites the whole file atomically via a temp file.
func (f *FileStore) Save(s *Session) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(metadataLine{
		Type:      "metadata",
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Metadata:  s.Metadata,
	}); err != nil {
		return fmt.Errorf("failed to encode session metadata: %w", err)
	}
	for _, rec := range s.Messages {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode session message: %w", err)
		}
	}

	tmp, err := os.CreateTemp(f.dir, "session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path(s.Key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (f *FileStore) Delete(key string) (bool, error) {
	err := os.Remove(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return true, nil
}

func (f *FileStore) List() ([]Info, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		meta, err := readFirstLineMetadata(filepath.Join(f.dir, e.Name()))
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(e.Name(), ".jsonl")
		infos = append(infos, Info{
			Key:       strings.ReplaceAll(key, "_", ":"),
			CreatedAt: meta.CreatedAt,
			UpdatedAt: meta.UpdatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}

func (f *FileStore) Close() error { return nil }

func readFirstLineMetadata(path string) (*metadataLine, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		return nil, fmt.Errorf("empty session file")
	}
	var meta metadataLine
	if err := json.Unmarshal(scanner.Bytes(), &meta); err != nil {
		return nil, err
	}
	if meta.Type != "metadata" {
		return nil, fmt.Errorf("missing metadata line")
	}
	return &meta, nil
}

// safeKey converts a session key to a filename: ':' becomes '_', other
// filesystem-hostile characters become '_' too.
func safeKey(key string) string {
	key = strings.ReplaceAll(key, ":", "_")
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, key)
}
