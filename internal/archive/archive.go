// Package archive persists finished sessions and their agent traces to
// SQLite so a play-through can be inspected after the process exits.
package archive

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wildtale-io/wildtale/internal/tracelog"
	"github.com/wildtale-io/wildtale/pkg/protocol"
)

// SessionRecord is one archived session.
type SessionRecord struct {
	ID         string    `json:"id"`
	Style      string    `json:"style"`
	Seed       int64     `json:"seed"`
	QuestTitle string    `json:"quest_title"`
	Difficulty string    `json:"difficulty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter narrows ListSessions results.
type Filter struct {
	Style string
	Query string // substring match on quest title
	Limit int
}

// Store implements the archive on SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite database and runs migrations.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: wal: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id          TEXT PRIMARY KEY,
			style       TEXT NOT NULL DEFAULT '',
			seed        INTEGER NOT NULL,
			quest_title TEXT NOT NULL DEFAULT '',
			difficulty  TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS traces (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq        INTEGER NOT NULL,
			from_agent TEXT NOT NULL,
			to_agent   TEXT NOT NULL DEFAULT '',
			kind       TEXT NOT NULL,
			topic      TEXT NOT NULL DEFAULT '',
			priority   TEXT NOT NULL DEFAULT '',
			summary    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_style ON sessions(style);
		CREATE INDEX IF NOT EXISTS idx_traces_kind ON traces(session_id, kind);
	`)
	if err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// SaveSession upserts a session record.
func (s *Store) SaveSession(rec SessionRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, style, seed, quest_title, difficulty, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			style=excluded.style, seed=excluded.seed, quest_title=excluded.quest_title,
			difficulty=excluded.difficulty
	`, rec.ID, rec.Style, rec.Seed, rec.QuestTitle, rec.Difficulty,
		rec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("archive: save session: %w", err)
	}
	return nil
}

// AppendTraces stores trace entries for a session. Re-sent sequence
// numbers are ignored so flushing the same window twice is safe.
func (s *Store) AppendTraces(sessionID string, entries []tracelog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("archive: append traces: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO traces (session_id, seq, from_agent, to_agent, kind, topic, priority, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("archive: append traces: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(sessionID, e.Seq, e.From, e.To, string(e.Kind),
			e.Topic, string(e.Priority), e.Summary,
			e.Time.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("archive: append traces: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: append traces: %w", err)
	}
	return nil
}

// GetSession returns one archived session by id.
func (s *Store) GetSession(id string) (*SessionRecord, error) {
	row := s.db.QueryRow(`SELECT id, style, seed, quest_title, difficulty, created_at FROM sessions WHERE id = ?`, id)
	rec, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session %q not found", id)
		}
		return nil, fmt.Errorf("archive: get session: %w", err)
	}
	return rec, nil
}

// ListSessions returns archived sessions, newest first.
func (s *Store) ListSessions(filter Filter) ([]*SessionRecord, error) {
	query := "SELECT id, style, seed, quest_title, difficulty, created_at FROM sessions WHERE 1=1"
	var args []any

	if filter.Style != "" {
		query += " AND style = ?"
		args = append(args, filter.Style)
	}
	if filter.Query != "" {
		query += " AND quest_title LIKE ?"
		args = append(args, fmt.Sprintf("%%%s%%", filter.Query))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: list sessions: %w", err)
	}
	defer rows.Close()

	var recs []*SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("archive: list scan: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SessionTraces returns all stored traces for a session in sequence order.
func (s *Store) SessionTraces(sessionID string) ([]tracelog.Entry, error) {
	rows, err := s.db.Query(`SELECT seq, from_agent, to_agent, kind, topic, priority, summary, created_at
		FROM traces WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("archive: session traces: %w", err)
	}
	defer rows.Close()

	var entries []tracelog.Entry
	for rows.Next() {
		var e tracelog.Entry
		var kind, topic, priority, ts string
		if err := rows.Scan(&e.Seq, &e.From, &e.To, &kind, &topic, &priority, &e.Summary, &ts); err != nil {
			return nil, fmt.Errorf("archive: scan trace: %w", err)
		}
		e.Session = sessionID
		e.Kind = protocol.Kind(kind)
		e.Topic = topic
		e.Priority = protocol.Priority(priority)
		e.Time, _ = time.Parse(time.RFC3339Nano, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes sessions (and their traces) older than the cutoff and
// returns how many sessions were removed.
func (s *Store) Prune(olderThan time.Time) (int, error) {
	cutoff := olderThan.UTC().Format(time.RFC3339)

	if _, err := s.db.Exec(`DELETE FROM traces WHERE session_id IN
		(SELECT id FROM sessions WHERE created_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("archive: prune traces: %w", err)
	}
	result, err := s.db.Exec(`DELETE FROM sessions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive: prune sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection (for testing or direct access).
func (s *Store) DB() *sql.DB {
	return s.db
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*SessionRecord, error) {
	var rec SessionRecord
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.Style, &rec.Seed, &rec.QuestTitle, &rec.Difficulty, &createdAt); err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}
