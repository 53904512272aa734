package review

// #region imports
import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/helpdesk-labs/policy-engine/internal/index"
)

// #endregion

// #region types

// Reason says why a question was escalated to humans.
type Reason string

const (
	ReasonLowConfidence Reason = "low_confidence"
	ReasonNotFound      Reason = "not_found"
	ReasonConflict      Reason = "conflict"
)

// Status is the review item state. The only transition is
// open → resolved, exactly once.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Item is one escalated question awaiting (or holding) a human answer.
type Item struct {
	ID             string
	Question       string
	Reason         Reason
	Status         Status
	DraftAnswer    string
	DraftCitations []index.Citation
	FinalAnswer    string
	CreatedAt      time.Time
	ResolvedAt     time.Time
}

// FAQEntry is a promoted (question, answer) pair reused for future
// identical questions ahead of retrieval.
type FAQEntry struct {
	Question  string
	Answer    string
	ReviewID  string
	CreatedAt time.Time
}

// #endregion types

// #region errors

// ErrInvalidResolution is returned when resolving a non-open item or
// resolving with an empty final answer.
var ErrInvalidResolution = errors.New("invalid resolution")

// #endregion errors

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS review_queue (
	id                   TEXT PRIMARY KEY,
	question             TEXT NOT NULL,
	reason               TEXT NOT NULL,
	status               TEXT NOT NULL,
	draft_answer         TEXT,
	draft_citations_json TEXT NOT NULL,
	final_answer         TEXT,
	created_at           TEXT NOT NULL,
	resolved_at          TEXT
);

CREATE INDEX IF NOT EXISTS idx_review_queue_status ON review_queue(status);

CREATE TABLE IF NOT EXISTS faq_entries (
	normalized_question TEXT PRIMARY KEY,
	question            TEXT NOT NULL,
	answer              TEXT NOT NULL,
	review_id           TEXT NOT NULL,
	created_at          TEXT NOT NULL
);
`

// #endregion schema

// #region queue-struct

// Queue owns the review item lifecycle and the promoted-FAQ store.
type Queue struct {
	db *sql.DB
}

// NewQueue attaches the review tables to db and returns the queue.
func NewQueue(db *sql.DB) (*Queue, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate review schema: %w", err)
	}
	return &Queue{db: db}, nil
}

// #endregion queue-struct

// #region open

// OpenRequest escalates one question. Repeated identical questions
// open repeated items; there is no deduplication.
type OpenRequest struct {
	Question       string
	Reason         Reason
	DraftAnswer    string
	DraftCitations []index.Citation
}

// Open creates a new open review item.
func (q *Queue) Open(req OpenRequest) (Item, error) {
	item := Item{
		ID:             uuid.New().String(),
		Question:       req.Question,
		Reason:         req.Reason,
		Status:         StatusOpen,
		DraftAnswer:    req.DraftAnswer,
		DraftCitations: req.DraftCitations,
		CreatedAt:      time.Now().UTC(),
	}

	citations := req.DraftCitations
	if citations == nil {
		citations = []index.Citation{}
	}
	citJSON, err := json.Marshal(citations)
	if err != nil {
		return Item{}, fmt.Errorf("marshal citations: %w", err)
	}

	_, err = q.db.Exec(
		`INSERT INTO review_queue (id, question, reason, status, draft_answer, draft_citations_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Question, string(item.Reason), string(item.Status),
		nullIfEmpty(item.DraftAnswer), string(citJSON),
		item.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Item{}, fmt.Errorf("insert review item: %w", err)
	}
	return item, nil
}

// #endregion open

// #region resolve

// Resolve transitions an open item to resolved with the given final
// answer, optionally promoting it to the FAQ store. The transition is
// a single conditional UPDATE, so concurrent duplicate resolutions
// lose the race and fail with ErrInvalidResolution instead of
// double-applying the promotion side effect.
func (q *Queue) Resolve(id, finalAnswer string, promoteToFAQ bool) (Item, error) {
	if strings.TrimSpace(finalAnswer) == "" {
		return Item{}, fmt.Errorf("%w: empty final answer", ErrInvalidResolution)
	}

	tx, err := q.db.Begin()
	if err != nil {
		return Item{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(
		`UPDATE review_queue SET status = ?, final_answer = ?, resolved_at = ?
		 WHERE id = ? AND status = ?`,
		string(StatusResolved), finalAnswer, now.Format(time.RFC3339Nano), id, string(StatusOpen),
	)
	if err != nil {
		return Item{}, fmt.Errorf("resolve update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return Item{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return Item{}, fmt.Errorf("%w: item %s is not open", ErrInvalidResolution, id)
	}

	item, err := getItem(tx, id)
	if err != nil {
		return Item{}, err
	}

	if promoteToFAQ {
		_, err = tx.Exec(
			`INSERT INTO faq_entries (normalized_question, question, answer, review_id, created_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(normalized_question) DO UPDATE SET
			   question = excluded.question,
			   answer = excluded.answer,
			   review_id = excluded.review_id,
			   created_at = excluded.created_at`,
			NormalizeQuestion(item.Question), item.Question, finalAnswer, id,
			now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return Item{}, fmt.Errorf("promote faq: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Item{}, fmt.Errorf("commit: %w", err)
	}
	return item, nil
}

// #endregion resolve

// #region list

// List returns review items newest first. An empty status returns all.
func (q *Queue) List(status Status) ([]Item, error) {
	query := `SELECT id, question, reason, status, draft_answer, draft_citations_json, final_answer, created_at, resolved_at
	          FROM review_queue`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := q.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns a single item by ID.
func (q *Queue) Get(id string) (Item, error) {
	return getItem(q.db, id)
}

// #endregion list

// #region faq

// LookupFAQ returns the promoted answer for an exact (normalized)
// question match, if one exists.
func (q *Queue) LookupFAQ(question string) (FAQEntry, bool, error) {
	var e FAQEntry
	var createdStr string
	err := q.db.QueryRow(
		`SELECT question, answer, review_id, created_at FROM faq_entries WHERE normalized_question = ?`,
		NormalizeQuestion(question),
	).Scan(&e.Question, &e.Answer, &e.ReviewID, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return FAQEntry{}, false, nil
	}
	if err != nil {
		return FAQEntry{}, false, fmt.Errorf("lookup faq: %w", err)
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return e, true, nil
}

// NormalizeQuestion lowercases, strips punctuation, and collapses
// whitespace so trivial phrasing differences still hit a promoted
// answer. Matching is exact after normalization; semantic matching is
// deliberately out of scope.
func NormalizeQuestion(question string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(question) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// #endregion faq

// #region scan

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func getItem(db interface {
	QueryRow(query string, args ...interface{}) *sql.Row
}, id string) (Item, error) {
	row := db.QueryRow(
		`SELECT id, question, reason, status, draft_answer, draft_citations_json, final_answer, created_at, resolved_at
		 FROM review_queue WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: item %s not found", ErrInvalidResolution, id)
	}
	return item, err
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var reason, status string
	var draftAnswer, finalAnswer, resolvedStr sql.NullString
	var citJSON, createdStr string

	err := row.Scan(&item.ID, &item.Question, &reason, &status,
		&draftAnswer, &citJSON, &finalAnswer, &createdStr, &resolvedStr)
	if err != nil {
		return Item{}, err
	}

	item.Reason = Reason(reason)
	item.Status = Status(status)
	if draftAnswer.Valid {
		item.DraftAnswer = draftAnswer.String
	}
	if finalAnswer.Valid {
		item.FinalAnswer = finalAnswer.String
	}
	if err := json.Unmarshal([]byte(citJSON), &item.DraftCitations); err != nil {
		return Item{}, fmt.Errorf("unmarshal citations: %w", err)
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if resolvedStr.Valid {
		item.ResolvedAt, _ = time.Parse(time.RFC3339Nano, resolvedStr.String)
	}
	return item, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion scan
