package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteAuditSink writes audit events to a sqlite table so timelines and
// exports can query them alongside the action records.
type SQLiteAuditSink struct {
	dsn           string
	busyTimeoutMs int

	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteAuditSink opens a sink on dsn. The sink usually shares its
// database file with the gorm store, so writes must wait out the other
// connection's locks instead of surfacing SQLITE_BUSY; busyTimeoutMs <= 0
// falls back to 5000.
func NewSQLiteAuditSink(dsn string, busyTimeoutMs int) (*SQLiteAuditSink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing sqlite dsn")
	}
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	s := &SQLiteAuditSink{dsn: dsn, busyTimeoutMs: busyTimeoutMs}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteAuditSink) Emit(ctx context.Context, e Event) error {
	if s == nil {
		return fmt.Errorf("nil audit sink")
	}
	if err := s.ensureOpen(); err != nil {
		return err
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO audit_events (
  event_id, ts_unix, user_id, thread_id,
  action_type, action_key, order_id,
  severity, message
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, strings.TrimSpace(e.EventID), ts.Unix(), strings.TrimSpace(e.UserID), strings.TrimSpace(e.ThreadID),
		strings.TrimSpace(e.ActionType), e.ActionKey, e.OrderID,
		string(e.Severity), e.Message,
	)
	return err
}

// Recent returns the newest events for a user, newest first.
func (s *SQLiteAuditSink) Recent(ctx context.Context, userID string, limit int) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("nil audit sink")
	}
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, ts_unix, user_id, thread_id, action_type, action_key, order_id, severity, message
FROM audit_events
WHERE user_id = ?
ORDER BY ts_unix DESC, rowid DESC
LIMIT ?
`, strings.TrimSpace(userID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			tsUnix  int64
			sevText string
		)
		if err := rows.Scan(&e.EventID, &tsUnix, &e.UserID, &e.ThreadID, &e.ActionType, &e.ActionKey, &e.OrderID, &sevText, &e.Message); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(tsUnix, 0).UTC()
		e.Severity = Severity(sevText)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteAuditSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteAuditSink) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return err
	}
	// One pinned connection so the pragma below stays in effect for every
	// statement the sink runs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.busyTimeoutMs)); err != nil {
		db.Close()
		return err
	}
	s.db = db
	return s.migrate()
}

func (s *SQLiteAuditSink) ensureOpen() error {
	if s.db != nil {
		return nil
	}
	return s.open()
}

func (s *SQLiteAuditSink) migrate() error {
	if s.db == nil {
		return fmt.Errorf("sqlite db is not open")
	}
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS audit_events (
  event_id TEXT PRIMARY KEY,
  ts_unix INTEGER NOT NULL,
  user_id TEXT NOT NULL,
  thread_id TEXT,
  action_type TEXT,
  action_key TEXT,
  order_id INTEGER,
  severity TEXT NOT NULL,
  message TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_events_user_ts ON audit_events(user_id, ts_unix);
`)
	return err
}
