package compose

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/helpdesk-labs/policy-engine/internal/access"
	"github.com/helpdesk-labs/policy-engine/internal/confidence"
	"github.com/helpdesk-labs/policy-engine/internal/index"
	"github.com/helpdesk-labs/policy-engine/internal/model"
	"github.com/helpdesk-labs/policy-engine/internal/review"
)

// failingModel always reports the capability as unavailable.
type failingModel struct{}

func (failingModel) Embed(context.Context, string) ([]float32, error) {
	return nil, model.ErrUnavailable
}

func (failingModel) Generate(context.Context, string, []string) (string, error) {
	return "", fmt.Errorf("generate: %w", model.ErrUnavailable)
}

func tempComposer(t *testing.T, gen model.Client) (*Composer, *review.Queue) {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	queue, err := review.NewQueue(db)
	if err != nil {
		t.Fatalf("NewQueue: %v", err)
	}
	return NewComposer(gen, queue, DefaultConfig()), queue
}

func match(docID, content string, distance float64) index.Match {
	return index.Match{
		Chunk: index.Chunk{
			ID:            "chunk-" + docID,
			DocID:         docID,
			Type:          "text",
			PageStart:     1,
			PageEnd:       1,
			Content:       content,
			Access:        access.Internal,
			EffectiveDate: "2026-01-01",
		},
		DocTitle:  "Doc " + docID,
		PolicyKey: "expense_policy",
		Distance:  distance,
	}
}

func TestComposeConfidentAnswer(t *testing.T) {
	c, queue := tempComposer(t, model.NewLexicalClient())

	matches := []index.Match{
		match("d1", "Meals are capped at $70/day.", 0.2),
		match("d1", "Hotels are capped at $220/night.", 0.6),
	}
	ans, err := c.Compose(context.Background(), "meals limit?", access.Internal, matches)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if ans.Confidence != confidence.High || ans.LowConfidence {
		t.Fatalf("confidence = %s low=%v", ans.Confidence, ans.LowConfidence)
	}
	if ans.BestDistance != 0.2 {
		t.Fatalf("bestDistance = %f", ans.BestDistance)
	}
	if len(ans.Citations) != 2 {
		t.Fatalf("citations = %d", len(ans.Citations))
	}
	if ans.Citations[0].Quote != "Meals are capped at $70/day." {
		t.Fatalf("quote = %q", ans.Citations[0].Quote)
	}
	if !strings.Contains(ans.Answer, "$70/day") {
		t.Fatalf("answer not grounded: %q", ans.Answer)
	}
	if ans.ReviewID != "" {
		t.Fatal("confident answer must not escalate")
	}
	if items, _ := queue.List(""); len(items) != 0 {
		t.Fatalf("unexpected review items: %d", len(items))
	}
}

func TestComposeNotFound(t *testing.T) {
	c, queue := tempComposer(t, model.NewLexicalClient())

	ans, err := c.Compose(context.Background(), "what about teleporters?", access.Public, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !ans.LowConfidence || ans.Confidence != confidence.Low {
		t.Fatalf("expected Low/low, got %s/%v", ans.Confidence, ans.LowConfidence)
	}
	if len(ans.Citations) != 0 {
		t.Fatalf("expected no citations, got %d", len(ans.Citations))
	}
	if !strings.Contains(ans.Answer, "public") {
		t.Fatalf("not-found answer should name the access level: %q", ans.Answer)
	}
	if ans.ReviewID == "" {
		t.Fatal("not-found must escalate")
	}

	items, _ := queue.List(review.StatusOpen)
	if len(items) != 1 || items[0].Reason != review.ReasonNotFound {
		t.Fatalf("review items = %+v", items)
	}
	if items[0].Question != "what about teleporters?" {
		t.Fatalf("question = %q", items[0].Question)
	}
	if items[0].DraftAnswer != "" {
		t.Fatal("not-found escalation carries no draft")
	}
}

func TestComposeDistantMatchesAreNotFound(t *testing.T) {
	c, _ := tempComposer(t, model.NewLexicalClient())

	ans, err := c.Compose(context.Background(), "q?", access.Internal,
		[]index.Match{match("d1", "unrelated content", 0.93)})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	// Distance past the not-found cutoff: reported as not found even
	// though a weak match existed.
	if len(ans.Citations) != 0 || !ans.LowConfidence {
		t.Fatalf("citations=%d low=%v", len(ans.Citations), ans.LowConfidence)
	}
}

func TestComposeLowConfidenceDraft(t *testing.T) {
	c, queue := tempComposer(t, model.NewLexicalClient())

	ans, err := c.Compose(context.Background(), "vague question", access.Internal,
		[]index.Match{match("d1", "Somewhat related policy text.", 0.7)})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !ans.LowConfidence || ans.Confidence != confidence.Low {
		t.Fatalf("confidence = %s low=%v", ans.Confidence, ans.LowConfidence)
	}
	// Best-effort draft still grounded and cited
	if len(ans.Citations) != 1 || ans.Answer == "" {
		t.Fatalf("citations=%d answer=%q", len(ans.Citations), ans.Answer)
	}
	if ans.ReviewID == "" {
		t.Fatal("low confidence must escalate")
	}

	items, _ := queue.List(review.StatusOpen)
	if len(items) != 1 || items[0].Reason != review.ReasonLowConfidence {
		t.Fatalf("review items = %+v", items)
	}
	if items[0].DraftAnswer != ans.Answer || len(items[0].DraftCitations) != 1 {
		t.Fatal("escalation should carry the draft answer and citations")
	}
}

func TestComposeConflictForcesEscalation(t *testing.T) {
	c, queue := tempComposer(t, model.NewLexicalClient())

	// Two docs, both close, disagreeing on the limit.
	matches := []index.Match{
		match("d1", "Meals are capped at $70/day.", 0.1),
		match("d2", "Meals are capped at $60/day.", 0.15),
	}
	ans, err := c.Compose(context.Background(), "what is the meals limit?", access.Internal, matches)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	// Distance alone grades High, but grounding trumps similarity.
	if ans.Confidence != confidence.High {
		t.Fatalf("confidence = %s", ans.Confidence)
	}
	if !ans.LowConfidence || ans.ReviewID == "" {
		t.Fatalf("conflict must escalate: low=%v reviewID=%q", ans.LowConfidence, ans.ReviewID)
	}

	items, _ := queue.List(review.StatusOpen)
	if len(items) != 1 || items[0].Reason != review.ReasonConflict {
		t.Fatalf("review items = %+v", items)
	}
}

func TestComposeRepeatedQuestionsEscalateRepeatedly(t *testing.T) {
	c, queue := tempComposer(t, model.NewLexicalClient())
	for i := 0; i < 2; i++ {
		if _, err := c.Compose(context.Background(), "same unknown question", access.Internal, nil); err != nil {
			t.Fatalf("Compose %d: %v", i, err)
		}
	}
	if items, _ := queue.List(""); len(items) != 2 {
		t.Fatalf("expected 2 review items, got %d", len(items))
	}
}

func TestComposeGenerationFailure(t *testing.T) {
	c, _ := tempComposer(t, failingModel{})

	_, err := c.Compose(context.Background(), "meals?", access.Internal,
		[]index.Match{match("d1", "Meals are capped at $70/day.", 0.2)})
	if !errors.Is(err, model.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestDetectConflict(t *testing.T) {
	tests := []struct {
		name     string
		question string
		matches  []index.Match
		want     bool
	}{
		{
			"disagreeing-limits",
			"what is the meals limit?",
			[]index.Match{match("d1", "Meals | $70/day", 0.1), match("d2", "Meals | $60/day", 0.2)},
			true,
		},
		{
			"no-numeric-intent",
			"who approves expense reports?",
			[]index.Match{match("d1", "Meals | $70/day", 0.1), match("d2", "Meals | $60/day", 0.2)},
			false,
		},
		{
			"same-doc-only",
			"what is the meals limit?",
			[]index.Match{match("d1", "Meals | $70/day", 0.1), match("d1", "Hotels | $220/night", 0.2)},
			false,
		},
		{
			"agreeing-docs",
			"what is the meals limit?",
			[]index.Match{match("d1", "Meals | $70/day", 0.1), match("d2", "Meals | $70/day", 0.2)},
			false,
		},
		{
			"formatting-differences-agree",
			"maximum hotel rate?",
			[]index.Match{match("d1", "Hotel max $1,500", 0.1), match("d2", "Hotel max $ 1500", 0.2)},
			false,
		},
		{
			"no-amounts",
			"what is the meals limit?",
			[]index.Match{match("d1", "Meals require receipts.", 0.1), match("d2", "Submit within 30 days.", 0.2)},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectConflict(tt.question, tt.matches); got != tt.want {
				t.Errorf("DetectConflict = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummarizeQuote(t *testing.T) {
	long := strings.Repeat("policy text ", 40)
	got := SummarizeQuote(long, 220)
	if len([]rune(got)) != 220 {
		t.Fatalf("quote length = %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatal("truncated quote should end with ellipsis")
	}

	if got := SummarizeQuote("  spaced\n\nout\ttext ", 220); got != "spaced out text" {
		t.Fatalf("whitespace not collapsed: %q", got)
	}
}
