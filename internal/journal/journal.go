// Package journal persists every published message to SQLite so a session can
// be reviewed after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/srg/beathard/internal/broadcast"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT    NOT NULL,
	kind       TEXT    NOT NULL,
	fighter_id TEXT,
	timestamp  INTEGER NOT NULL,
	payload    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events (session_id, id);
`

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// Entry is one journaled message.
type Entry struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Kind      string          `json:"kind"`
	FighterID string          `json:"fighter_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Journal is a broadcast.Publisher backed by a SQLite file. Each Open starts
// a new session id.
type Journal struct {
	db        *sql.DB
	sessionID string
	logger    *logrus.Logger
}

// Open opens or creates the database at path.
func Open(path string, logger *logrus.Logger) (*Journal, error) {
	if logger == nil {
		logger = logrus.New()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// a single writer keeps ":memory:" databases on one connection
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	j := &Journal{db: db, sessionID: uuid.NewString(), logger: logger}
	logger.WithFields(logrus.Fields{"path": path, "session_id": j.sessionID}).Info("Event journal opened")
	return j, nil
}

// SessionID identifies the rows written through this Journal.
func (j *Journal) SessionID() string { return j.sessionID }

func (j *Journal) Publish(ctx context.Context, msg broadcast.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	var fighter sql.NullString
	if msg.FighterID != "" {
		fighter = sql.NullString{String: msg.FighterID, Valid: true}
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO events (session_id, kind, fighter_id, timestamp, payload) VALUES (?, ?, ?, ?, ?)`,
		j.sessionID, msg.Kind.String(), fighter, msg.Timestamp, string(payload))
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Recent returns up to limit entries of the current session, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, kind, fighter_id, timestamp, payload
		   FROM events WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		j.sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			fighter sql.NullString
			payload string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &fighter, &e.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.FighterID = fighter.String
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
