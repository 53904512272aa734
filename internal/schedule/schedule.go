package schedule

// #region imports
import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// #endregion

// #region types

// DayHours is one weekday's working window. Duplicate day names are
// tolerated on write; the resolver treats the last entry as
// authoritative (latest wins).
type DayHours struct {
	Day   string `json:"day" validate:"required"`
	Start string `json:"start" validate:"required,datetime=15:04"`
	End   string `json:"end" validate:"required,datetime=15:04"`
	Note  string `json:"note,omitempty"`
}

// OnCallWindow is a dated on-call span.
type OnCallWindow struct {
	From string `json:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" validate:"required,datetime=2006-01-02"`
	Note string `json:"note,omitempty"`
}

// Holiday is one observed date.
type Holiday struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Name string `json:"name" validate:"required"`
}

// Config is the singleton work-schedule configuration. It is replaced
// wholesale on update; there are no partial edits.
type Config struct {
	Timezone string         `json:"timezone" validate:"required"`
	Week     []DayHours     `json:"week" validate:"required,min=1,dive"`
	OnCall   []OnCallWindow `json:"oncall,omitempty" validate:"dive"`
	Holidays []Holiday      `json:"holidays,omitempty" validate:"dive"`
}

// #endregion types

// #region errors

// ErrInvalidConfig is returned by Set for a malformed configuration.
var ErrInvalidConfig = errors.New("invalid schedule config")

// #endregion errors

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS schedule_config (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	json_blob  TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// #endregion schema

// #region store

// Store holds the config as a single row replaced atomically, so a
// concurrent reader sees either the old or the new config in full.
type Store struct {
	db       *sql.DB
	validate *validator.Validate
}

// NewStore attaches the schedule table to db.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate schedule schema: %w", err)
	}
	return &Store{db: db, validate: validator.New()}, nil
}

// Set validates and replaces the configuration wholesale.
func (s *Store) Set(cfg Config) error {
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, cfg.Timezone)
	}
	for _, d := range cfg.Week {
		if !knownDay(d.Day) {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidConfig, d.Day)
		}
	}

	blob, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO schedule_config (id, json_blob, updated_at) VALUES (1, ?, ?)`,
		string(blob), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store schedule: %w", err)
	}
	return nil
}

// Get returns the current config. ok is false when none is set yet.
func (s *Store) Get() (Config, bool, error) {
	var blob string
	err := s.db.QueryRow(`SELECT json_blob FROM schedule_config WHERE id = 1`).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, fmt.Errorf("load schedule: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		return Config{}, false, fmt.Errorf("unmarshal schedule: %w", err)
	}
	return cfg, true, nil
}

// #endregion store

// #region days

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func knownDay(name string) bool {
	_, ok := weekdays[normalizeDay(name)]
	return ok
}

// #endregion days
