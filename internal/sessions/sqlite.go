package sessions

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	key        TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	messages   TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
`

// SQLiteStore keeps all sessions in a single database file. Messages are
// stored as a JSON document per session, mirroring the JSONL layout.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "sessions.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open sessions db: %w", err)
	}
	// The driver is not safe for concurrent writes on one connection pool
	// entry; keep it to a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init sessions schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(key string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT created_at, updated_at, metadata, messages FROM sessions WHERE key = ?`, key)

	var createdAt, updatedAt, metaJSON, msgsJSON string
	if err := row.Scan(&createdAt, &updatedAt, &metaJSON, &msgsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := newSession(key)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		sess.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		sess.UpdatedAt = t
	}
	if err := json.Unmarshal([]byte(metaJSON), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("failed to parse session metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(msgsJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("failed to parse session messages: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) Save(sess *Session) error {
	metaJSON, err := json.Marshal(sess.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode session metadata: %w", err)
	}
	msgs := sess.Messages
	if msgs == nil {
		msgs = []Record{}
	}
	msgsJSON, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to encode session messages: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (key, created_at, updated_at, metadata, messages)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			updated_at = excluded.updated_at,
			metadata   = excluded.metadata,
			messages   = excluded.messages`,
		sess.Key,
		sess.CreatedAt.Format(time.RFC3339Nano),
		sess.UpdatedAt.Format(time.RFC3339Nano),
		string(metaJSON),
		string(msgsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) List() ([]Info, error) {
	rows, err := s.db.Query(
		`SELECT key, created_at, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var key, createdAt, updatedAt string
		if err := rows.Scan(&key, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		info := Info{Key: key}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			info.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			info.UpdatedAt = t
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
