package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/helpdesk-labs/policy-engine/internal/access"
	"github.com/helpdesk-labs/policy-engine/internal/config"
	"github.com/helpdesk-labs/policy-engine/internal/engine"
	"github.com/helpdesk-labs/policy-engine/internal/model"
	"github.com/helpdesk-labs/policy-engine/internal/review"
)

// #region main
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(envOr("ENGINE_CONFIG", "engine.toml"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	eng, err := engine.New(cfg, buildClient(cfg))
	if err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer eng.Close()

	asker := access.Level(envOr("ASKER_ACCESS", "internal"))
	if !access.Valid(asker) {
		log.Fatalf("unknown access level %q", asker)
	}

	fmt.Println("Policy engine ready.")
	fmt.Printf("  DB: %s | access: %s\n", cfg.DBPath, asker)
	fmt.Println("Ask a question, or: access <level> | review | resolve <id> <answer> | promote <id> <answer> | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		switch {
		case strings.HasPrefix(line, "access "):
			next := access.Level(strings.TrimSpace(strings.TrimPrefix(line, "access ")))
			if !access.Valid(next) {
				fmt.Printf("unknown access level %q\n", next)
				continue
			}
			asker = next
			fmt.Printf("asking as %s\n", asker)

		case line == "review":
			printReview(eng)

		case strings.HasPrefix(line, "resolve "):
			resolve(eng, strings.TrimPrefix(line, "resolve "), false)

		case strings.HasPrefix(line, "promote "):
			resolve(eng, strings.TrimPrefix(line, "promote "), true)

		default:
			ask(eng, line, asker)
		}
	}
}

// #endregion main

// #region commands

func ask(eng *engine.Engine, question string, asker access.Level) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := eng.Ask(ctx, question, asker)
	if err != nil {
		log.Printf("ask error: %v", err)
		return
	}

	fmt.Printf("\n%s\n\n", resp.Answer.Answer)
	if resp.FromFAQ {
		fmt.Println("[faq answer]")
		return
	}
	for _, c := range resp.Citations {
		fmt.Printf("  [%s p.%d-%d] %s\n", c.DocTitle, c.PageStart, c.PageEnd, c.Quote)
	}
	if resp.Confidence != "" {
		fmt.Printf("confidence=%s best=%.3f", resp.Confidence, resp.BestDistance)
		if resp.ReviewID != "" {
			fmt.Printf(" review=%s", resp.ReviewID)
		}
		fmt.Println()
	}
}

func printReview(eng *engine.Engine) {
	items, err := eng.ListReview(review.StatusOpen)
	if err != nil {
		log.Printf("list review: %v", err)
		return
	}
	if len(items) == 0 {
		fmt.Println("review queue is empty")
		return
	}
	for _, it := range items {
		fmt.Printf("  %s [%s] %s\n", it.ID, it.Reason, it.Question)
	}
}

func resolve(eng *engine.Engine, args string, promote bool) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) != 2 {
		fmt.Println("usage: resolve <id> <final answer>")
		return
	}
	item, err := eng.ResolveReview(parts[0], parts[1], promote)
	if err != nil {
		log.Printf("resolve: %v", err)
		return
	}
	fmt.Printf("resolved %s (promoted=%v)\n", item.ID, promote)
}

// #endregion commands

// #region helpers

func buildClient(cfg config.Config) model.Client {
	if envOr("MODEL_PROVIDER", "lexical") == "http" {
		return model.NewHTTPClient(model.HTTPConfig{
			EmbedURL:      cfg.Model.EmbedURL,
			GenerateURL:   cfg.Model.GenerateURL,
			EmbedModel:    cfg.Model.EmbedModel,
			GenerateModel: cfg.Model.GenerateModel,
			Timeout:       time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
		})
	}
	return model.NewLexicalClient()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
