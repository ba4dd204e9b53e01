// Package history keeps a transcript of finished chat turns in SQLite.
// The database is opened lazily on first use. If opening it or running a
// query fails, the store keeps working from memory.
package history

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/ollamachat/internal/logger"
)

var errNoPath = errors.New("history path is empty")

// Record is one persisted chat turn.
type Record struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	MessageID string    `json:"message_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store records transcripts for chat sessions.
type Store struct {
	path string

	mu      sync.Mutex
	records []Record // in-memory fallback

	dbOnce  sync.Once
	db      *sql.DB
	initErr error
}

// NewStore returns a store backed by the SQLite file at path. An empty path
// keeps everything in memory.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) initDB() {
	if s.path == "" {
		s.initErr = errNoPath
		return
	}
	db, err := sql.Open("sqlite", "file:"+s.path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		s.initErr = err
		logger.L.Warn("sqlite open failed; using in-memory history", "path", s.path, "error", err)
		return
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`); err != nil {
		_ = db.Close()
		s.initErr = err
		logger.L.Warn("sqlite table creation failed; using in-memory history", "path", s.path, "error", err)
		return
	}
	s.db = db
	logger.L.Debug("sqlite history DB initialized", "path", s.path)
}

func (s *Store) ready() bool {
	s.dbOnce.Do(s.initDB)
	return s.initErr == nil && s.db != nil
}

// Save persists a record when the database is available and always keeps an
// in-memory copy as fallback.
func (s *Store) Save(r Record) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if s.ready() {
		_, err := s.db.Exec(`INSERT INTO messages (session_id, message_id, role, content, created_at) VALUES (?,?,?,?,?);`,
			r.SessionID, r.MessageID, r.Role, r.Content, r.CreatedAt.UTC())
		if err != nil {
			logger.L.Error("failed to store message in sqlite; falling back to memory", "error", err)
		}
	}

	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
}

// List returns all records of a session in chronological order.
func (s *Store) List(sessionID string) []Record {
	if s.ready() {
		out, err := s.query(sessionID)
		if err == nil {
			return out
		}
		logger.L.Error("failed to read history from sqlite; using memory", "error", err)
	}

	var out []Record
	s.mu.Lock()
	for _, r := range s.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	s.mu.Unlock()
	return out
}

func (s *Store) query(sessionID string) ([]Record, error) {
	rows, err := s.db.Query(`SELECT id, session_id, message_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.MessageID, &r.Role, &r.Content, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database handle, if one was opened.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
