// Package audit keeps a per-question decision log so every answer can
// be traced back to the route, grade, and escalation that produced it.
package audit

// #region imports
import (
	"database/sql"
	"fmt"
	"time"
)

// #endregion

// #region types

// Entry is a single row in the decision_log table.
type Entry struct {
	Question     string
	AskerAccess  string
	Route        string // "schedule" | "policy"
	Grade        string // "high" | "medium" | "low"; empty on schedule route
	BestDistance float64
	Matched      bool
	Reason       string // escalation reason, empty when answered directly
	ReviewID     string
	CreatedAt    time.Time
}

// #endregion

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS decision_log (
	question      TEXT NOT NULL,
	asker_access  TEXT NOT NULL,
	route         TEXT NOT NULL,
	grade         TEXT,
	best_distance REAL NOT NULL,
	matched       INTEGER NOT NULL,
	reason        TEXT,
	review_id     TEXT,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decision_created ON decision_log(created_at);
`

// #endregion

// #region log

// Log appends decision entries to SQLite. Append-only; entries are
// never updated or deleted.
type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate decision log: %w", err)
	}
	return &Log{db: db}, nil
}

// Record writes one decision entry.
func (l *Log) Record(entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.Exec(
		`INSERT INTO decision_log (question, asker_access, route, grade, best_distance, matched, reason, review_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Question,
		entry.AskerAccess,
		entry.Route,
		nullIfEmpty(entry.Grade),
		entry.BestDistance,
		entry.Matched,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.ReviewID),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (l *Log) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := l.db.Query(
		`SELECT question, asker_access, route, grade, best_distance, matched, reason, review_id, created_at
		 FROM decision_log ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decision log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var grade, reason, reviewID sql.NullString
		var createdAt string
		if err := rows.Scan(&e.Question, &e.AskerAccess, &e.Route, &grade, &e.BestDistance, &e.Matched, &reason, &reviewID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Grade = grade.String
		e.Reason = reason.String
		e.ReviewID = reviewID.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion log

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
