package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/helpdesk-labs/policy-engine/internal/access"
	"github.com/helpdesk-labs/policy-engine/internal/config"
	"github.com/helpdesk-labs/policy-engine/internal/engine"
	"github.com/helpdesk-labs/policy-engine/internal/index"
	"github.com/helpdesk-labs/policy-engine/internal/model"
	"github.com/helpdesk-labs/policy-engine/internal/schedule"
)

// #region seed

// seedHandbook is a starter policy so a fresh database answers
// questions immediately.
const seedHandbook = `# Travel & Expense Handbook

All business travel must be booked through the company portal at least seven days in advance.

| Category | Limit |
|----------|-------|
| Meals | $70/day |
| Lodging | $250/night |
| Ground transport | $40/day |

Receipts are required for any expense above $30 and must be submitted within 30 days of the trip.

International travel requires written manager approval before booking.`

var seedSchedule = schedule.Config{
	Timezone: "America/New_York",
	Week: []schedule.DayHours{
		{Day: "Monday", Start: "09:00", End: "17:30"},
		{Day: "Tuesday", Start: "09:00", End: "17:30"},
		{Day: "Wednesday", Start: "09:00", End: "17:30"},
		{Day: "Thursday", Start: "09:00", End: "17:30"},
		{Day: "Friday", Start: "09:00", End: "15:00", Note: "summer hours"},
	},
	Holidays: []schedule.Holiday{
		{Date: "2026-11-26", Name: "Thanksgiving"},
		{Date: "2026-12-25", Name: "Christmas Day"},
	},
}

// #endregion seed

// #region main
func main() {
	_ = godotenv.Load()

	var (
		file      = flag.String("file", "", "markdown file to ingest (empty = seed content)")
		title     = flag.String("title", "Travel & Expense Handbook", "document title")
		policyKey = flag.String("key", "travel_expense", "policy key shared across versions")
		level     = flag.String("access", "internal", "access level: public|internal|confidential|restricted")
		effective = flag.String("effective", time.Now().UTC().Format("2006-01-02"), "effective date (YYYY-MM-DD)")
		seed      = flag.Bool("seed-schedule", false, "also install the sample work schedule")
	)
	flag.Parse()

	cfg, err := config.Load(envOr("ENGINE_CONFIG", "engine.toml"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	eng, err := engine.New(cfg, model.NewLexicalClient())
	if err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer eng.Close()

	content := seedHandbook
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("read %s: %v", *file, err)
		}
		content = string(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	doc, err := eng.Ingest(ctx, index.IngestRequest{
		Title:         *title,
		PolicyKey:     *policyKey,
		Access:        access.Level(*level),
		EffectiveDate: *effective,
		Content:       content,
	})
	if err != nil {
		log.Fatalf("ingest: %v", err)
	}
	fmt.Printf("ingested %q\n", doc.Title)
	fmt.Printf("  id=%s key=%s access=%s effective=%s chunks=%d\n",
		doc.ID, doc.PolicyKey, doc.Access, doc.EffectiveDate, len(doc.Chunks))

	if *seed {
		if err := eng.SetSchedule(seedSchedule); err != nil {
			log.Fatalf("seed schedule: %v", err)
		}
		fmt.Printf("installed sample schedule (%s)\n", seedSchedule.Timezone)
	}
}

// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
