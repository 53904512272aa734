package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/helpdesk-labs/policy-engine/internal/config"
	"github.com/helpdesk-labs/policy-engine/internal/engine"
	"github.com/helpdesk-labs/policy-engine/internal/model"
	"github.com/helpdesk-labs/policy-engine/internal/review"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the engine database")
	mode := flag.String("mode", "docs", "what to show: docs | review | faq-check | decisions")
	status := flag.String("status", "", "review filter: open | resolved (empty = all)")
	last := flag.Int("last", 20, "show N most recent decisions")
	question := flag.String("question", "", "question to check against promoted FAQ answers")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/engine.db [--mode docs|review|faq-check|decisions] [--status open|resolved] [--last N] [--question q] [--json]")
		os.Exit(2)
	}

	cfg := config.Default()
	cfg.DBPath = *dbPath
	eng, err := engine.New(cfg, model.NewLexicalClient())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	switch *mode {
	case "docs":
		err = runDocs(eng, *jsonOut)
	case "review":
		err = runReview(eng, review.Status(*status), *jsonOut)
	case "faq-check":
		err = runFAQCheck(eng, *question)
	case "decisions":
		err = runDecisions(eng, *last, *jsonOut)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region docs-mode

func runDocs(eng *engine.Engine, jsonOut bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	docs, err := eng.ListDocs(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(os.Stderr, "no documents found")
		return nil
	}
	for _, d := range docs {
		fmt.Printf("%s  %-40q key=%s access=%s effective=%s chunks=%d\n",
			d.ID, d.Title, d.PolicyKey, d.Access, d.EffectiveDate, len(d.Chunks))
	}
	return nil
}

// #endregion docs-mode

// #region review-mode

func runReview(eng *engine.Engine, status review.Status, jsonOut bool) error {
	items, err := eng.ListReview(status)
	if err != nil {
		return err
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "no review items found")
		return nil
	}
	for _, it := range items {
		fmt.Printf("%s  [%s/%s] %s\n", it.ID, it.Status, it.Reason, it.Question)
		if it.FinalAnswer != "" {
			fmt.Printf("    → %s\n", it.FinalAnswer)
		}
	}
	return nil
}

// #endregion review-mode

// #region faq-mode

func runFAQCheck(eng *engine.Engine, question string) error {
	if question == "" {
		return fmt.Errorf("faq-check needs --question")
	}
	entry, ok, err := eng.LookupFAQ(question)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("no promoted answer for this question")
		return nil
	}
	fmt.Printf("faq hit: %s\n", entry.Answer)
	return nil
}

// #endregion faq-mode

// #region decisions-mode

func runDecisions(eng *engine.Engine, last int, jsonOut bool) error {
	entries, err := eng.RecentDecisions(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no decisions logged")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  route=%-8s access=%-12s grade=%-6s best=%.3f reason=%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Route, e.AskerAccess, e.Grade, e.BestDistance, e.Reason)
		fmt.Printf("    %s\n", e.Question)
	}
	return nil
}

// #endregion decisions-mode
