package schedule

import (
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func sampleConfig() Config {
	return Config{
		Timezone: "America/New_York",
		Week: []DayHours{
			{Day: "Monday", Start: "08:00", End: "17:00"},
			{Day: "Tuesday", Start: "08:00", End: "17:00"},
			{Day: "Friday", Start: "08:00", End: "13:00", Note: "early close"},
		},
		OnCall: []OnCallWindow{
			{From: "2026-09-07", To: "2026-09-13", Note: "primary"},
			{From: "2026-08-24", To: "2026-08-30"},
		},
		Holidays: []Holiday{
			{Date: "2026-11-26", Name: "Thanksgiving"},
			{Date: "2026-09-07", Name: "Labor Day"},
		},
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := tempStore(t)

	if _, ok, err := s.Get(); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	cfg := sampleConfig()
	if err := s.Set(cfg); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get()
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Timezone != cfg.Timezone || len(got.Week) != 3 || len(got.OnCall) != 2 || len(got.Holidays) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Week[2].Note != "early close" {
		t.Fatalf("note lost: %+v", got.Week[2])
	}
}

func TestSetReplacesWholesale(t *testing.T) {
	s := tempStore(t)
	if err := s.Set(sampleConfig()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	second := Config{
		Timezone: "UTC",
		Week:     []DayHours{{Day: "Wednesday", Start: "09:00", End: "18:00"}},
	}
	if err := s.Set(second); err != nil {
		t.Fatalf("Set replacement: %v", err)
	}
	got, _, err := s.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Timezone != "UTC" || len(got.Week) != 1 || len(got.OnCall) != 0 {
		t.Fatalf("old config leaked through: %+v", got)
	}
}

func TestSetRejectsInvalid(t *testing.T) {
	s := tempStore(t)
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing timezone", Config{Week: []DayHours{{Day: "Monday", Start: "08:00", End: "17:00"}}}},
		{"unknown timezone", Config{Timezone: "Mars/Olympus", Week: []DayHours{{Day: "Monday", Start: "08:00", End: "17:00"}}}},
		{"empty week", Config{Timezone: "UTC"}},
		{"unknown day", Config{Timezone: "UTC", Week: []DayHours{{Day: "Caturday", Start: "08:00", End: "17:00"}}}},
		{"bad hour format", Config{Timezone: "UTC", Week: []DayHours{{Day: "Monday", Start: "8am", End: "17:00"}}}},
		{"bad holiday date", Config{Timezone: "UTC", Week: []DayHours{{Day: "Monday", Start: "08:00", End: "17:00"}}, Holidays: []Holiday{{Date: "Nov 26", Name: "Thanksgiving"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.Set(tc.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("want ErrInvalidConfig, got %v", err)
			}
		})
	}
	if _, ok, _ := s.Get(); ok {
		t.Fatal("rejected config should not be stored")
	}
}

func TestConcurrentReadersSeeCompleteConfig(t *testing.T) {
	s := tempStore(t)
	if err := s.Set(sampleConfig()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				got, ok, err := s.Get()
				if err != nil || !ok {
					t.Errorf("Get: ok=%v err=%v", ok, err)
					return
				}
				if got.Timezone == "" || len(got.Week) == 0 {
					t.Errorf("partial config observed: %+v", got)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			if err := s.Set(sampleConfig()); err != nil {
				t.Errorf("Set: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

func mustTime(t *testing.T, v string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return ts
}

func TestResolveDayHours(t *testing.T) {
	cfg := sampleConfig()
	// 2026-09-02 is a Wednesday.
	now := mustTime(t, "2026-09-02T15:00:00Z")

	cases := []struct {
		name     string
		question string
		want     string
	}{
		{"explicit day", "What are my Monday hours?", "Your Monday hours are 08:00–17:00 (America/New_York)."},
		{"note included", "when do we close friday", "Your Friday hours are 08:00–13:00 — early close (America/New_York)."},
		{"unconfigured day", "What are my Sunday hours?", "No hours are configured for Sunday."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(cfg, tc.question, now)
			if got != tc.want {
				t.Fatalf("Resolve(%q) = %q, want %q", tc.question, got, tc.want)
			}
		})
	}
}

func TestResolveRelativeDays(t *testing.T) {
	cfg := sampleConfig()
	// 2026-08-31T02:00Z is still Sunday evening in New York, so "today"
	// must resolve against the configured timezone, not UTC.
	now := mustTime(t, "2026-08-31T02:00:00Z")

	if got := Resolve(cfg, "What are my hours today?", now); !strings.Contains(got, "Sunday") {
		t.Fatalf("today should be Sunday in config timezone, got %q", got)
	}
	if got := Resolve(cfg, "What are my hours tomorrow?", now); !strings.Contains(got, "Monday") {
		t.Fatalf("tomorrow should be Monday, got %q", got)
	}
}

func TestResolveDuplicateDayLatestWins(t *testing.T) {
	cfg := sampleConfig()
	cfg.Week = append(cfg.Week, DayHours{Day: "Monday", Start: "10:00", End: "19:00"})
	now := mustTime(t, "2026-09-02T15:00:00Z")

	got := Resolve(cfg, "monday hours?", now)
	if !strings.Contains(got, "10:00–19:00") {
		t.Fatalf("later entry should win: %q", got)
	}
}

func TestResolveOnCall(t *testing.T) {
	cfg := sampleConfig()

	t.Run("inside window", func(t *testing.T) {
		now := mustTime(t, "2026-09-09T12:00:00Z")
		got := Resolve(cfg, "Am I on-call this week?", now)
		if !strings.Contains(got, "on-call from 2026-09-07 to 2026-09-13") {
			t.Fatalf("got %q", got)
		}
	})
	t.Run("next window", func(t *testing.T) {
		now := mustTime(t, "2026-09-01T12:00:00Z")
		got := Resolve(cfg, "when is my next oncall shift", now)
		if !strings.Contains(got, "Next on-call window: 2026-09-07") {
			t.Fatalf("got %q", got)
		}
	})
	t.Run("all windows past", func(t *testing.T) {
		now := mustTime(t, "2026-12-01T12:00:00Z")
		got := Resolve(cfg, "am i on call", now)
		if got != "No current or upcoming on-call windows." {
			t.Fatalf("got %q", got)
		}
	})
	t.Run("none configured", func(t *testing.T) {
		bare := cfg
		bare.OnCall = nil
		got := Resolve(bare, "am i on-call", mustTime(t, "2026-09-01T12:00:00Z"))
		if got != "No on-call windows are configured." {
			t.Fatalf("got %q", got)
		}
	})
}

func TestResolveHolidays(t *testing.T) {
	cfg := sampleConfig()
	now := mustTime(t, "2026-09-10T12:00:00Z")

	t.Run("month filter", func(t *testing.T) {
		got := Resolve(cfg, "Any holidays in November?", now)
		if !strings.Contains(got, "Thanksgiving on 2026-11-26") {
			t.Fatalf("got %q", got)
		}
	})
	t.Run("empty month", func(t *testing.T) {
		got := Resolve(cfg, "Any holidays in December?", now)
		if got != "No holidays found in December." {
			t.Fatalf("got %q", got)
		}
	})
	t.Run("next upcoming", func(t *testing.T) {
		got := Resolve(cfg, "when is the next holiday", now)
		if !strings.Contains(got, "Next holiday: Thanksgiving on 2026-11-26") {
			t.Fatalf("got %q", got)
		}
	})
	t.Run("all past", func(t *testing.T) {
		got := Resolve(cfg, "next holiday?", mustTime(t, "2027-01-05T12:00:00Z"))
		if got != "No upcoming holidays are in the schedule." {
			t.Fatalf("got %q", got)
		}
	})
	t.Run("none configured", func(t *testing.T) {
		bare := cfg
		bare.Holidays = nil
		got := Resolve(bare, "next holiday?", now)
		if got != "No holidays are configured." {
			t.Fatalf("got %q", got)
		}
	})
}

func TestResolveCannotDetermine(t *testing.T) {
	got := Resolve(sampleConfig(), "what is the meaning of life", mustTime(t, "2026-09-02T15:00:00Z"))
	if got != cannotDetermine {
		t.Fatalf("got %q", got)
	}
}
