package compose

// #region imports
import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/helpdesk-labs/policy-engine/internal/access"
	"github.com/helpdesk-labs/policy-engine/internal/confidence"
	"github.com/helpdesk-labs/policy-engine/internal/index"
	"github.com/helpdesk-labs/policy-engine/internal/model"
	"github.com/helpdesk-labs/policy-engine/internal/review"
)

// #endregion

// #region types

// Answer is the shaped response to a policy question. Uncertainty is
// data here, not an error: no matches, low confidence, and conflicts
// all come back as a valid Answer with the escalation recorded.
type Answer struct {
	Answer        string
	Citations     []index.Citation
	Confidence    confidence.Grade
	BestDistance  float64
	LowConfidence bool
	ReviewID      string
}

// Config holds the composer cut points.
type Config struct {
	// Matches at or beyond CitationCutoff never become citations.
	CitationCutoff float64
	// A best distance at or beyond NotFoundCutoff counts as not found
	// even when weak matches exist.
	NotFoundCutoff float64
	// QuoteLength caps citation quotes.
	QuoteLength int
	Thresholds  confidence.Thresholds
}

// DefaultConfig returns the standard composer cut points.
func DefaultConfig() Config {
	return Config{
		CitationCutoff: 0.95,
		NotFoundCutoff: 0.9,
		QuoteLength:    220,
		Thresholds:     confidence.DefaultThresholds(),
	}
}

// #endregion types

// #region composer

// Composer turns ranked matches into a grounded answer, deciding
// confidence, citations, and escalation. It owns the only call site of
// review.Queue.Open in the ask pipeline.
type Composer struct {
	gen    model.Client
	queue  *review.Queue
	config Config
}

// NewComposer wires the generation capability and the review queue.
func NewComposer(gen model.Client, queue *review.Queue, config Config) *Composer {
	return &Composer{gen: gen, queue: queue, config: config}
}

// #endregion composer

// #region compose

// Compose produces the answer for one question. Exactly one review
// item is opened per escalated call; repeated identical questions
// escalate repeatedly. Generation failures surface as
// model.ErrUnavailable wrapped errors, never as a fabricated answer.
func (c *Composer) Compose(ctx context.Context, question string, asker access.Level, matches []index.Match) (Answer, error) {
	citations := c.project(matches)

	best := 1.0
	if len(citations) > 0 {
		best = citations[0].Distance
	}
	notFound := len(citations) == 0 || best >= c.config.NotFoundCutoff
	grade, low := c.config.Thresholds.Score(best, !notFound)

	conflict := !notFound && DetectConflict(question, matches)
	if conflict {
		// Grounding trumps similarity: contradictory sources escalate
		// even when the distance alone grades High.
		low = true
	}

	var answer string
	if notFound {
		citations = nil
		answer = fmt.Sprintf(
			"I couldn't find this in the ingested policies visible at your access level (%s). Routing it to the review queue for an official answer.",
			asker)
	} else {
		text, err := c.gen.Generate(ctx, question, grounding(matches, len(citations)))
		if err != nil {
			return Answer{}, fmt.Errorf("compose answer: %w", err)
		}
		answer = text
	}

	out := Answer{
		Answer:        answer,
		Citations:     citations,
		Confidence:    grade,
		BestDistance:  best,
		LowConfidence: low,
	}

	if low {
		reason := review.ReasonLowConfidence
		draft := answer
		switch {
		case notFound:
			reason = review.ReasonNotFound
			draft = ""
		case conflict:
			reason = review.ReasonConflict
		}

		item, err := c.queue.Open(review.OpenRequest{
			Question:       question,
			Reason:         reason,
			DraftAnswer:    draft,
			DraftCitations: citations,
		})
		if err != nil {
			return Answer{}, fmt.Errorf("escalate: %w", err)
		}
		out.ReviewID = item.ID
	}
	return out, nil
}

// #endregion compose

// #region projection

// project converts matches to citations, dropping anything at or past
// the citation cutoff and preserving rank order.
func (c *Composer) project(matches []index.Match) []index.Citation {
	var citations []index.Citation
	for _, m := range matches {
		if m.Distance >= c.config.CitationCutoff {
			continue
		}
		citations = append(citations, index.Citation{
			ChunkID:   m.Chunk.ID,
			DocID:     m.Chunk.DocID,
			DocTitle:  m.DocTitle,
			PolicyKey: m.PolicyKey,
			PageStart: m.Chunk.PageStart,
			PageEnd:   m.Chunk.PageEnd,
			Quote:     SummarizeQuote(m.Chunk.Content, c.config.QuoteLength),
			Distance:  m.Distance,
		})
	}
	return citations
}

// grounding renders the chunks backing the first n citations for the
// generation prompt.
func grounding(matches []index.Match, n int) []string {
	if n > len(matches) {
		n = len(matches)
	}
	out := make([]string, 0, n)
	for _, m := range matches[:n] {
		out = append(out, fmt.Sprintf("%s (p.%d, effective %s)\n%s",
			m.DocTitle, m.Chunk.PageStart, m.Chunk.EffectiveDate, m.Chunk.Content))
	}
	return out
}

// #endregion projection

// #region quote

var whitespacePattern = regexp.MustCompile(`\s+`)

// SummarizeQuote collapses whitespace and caps the quote length.
func SummarizeQuote(text string, max int) string {
	t := strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if max <= 0 {
		return t
	}
	runes := []rune(t)
	if len(runes) > max {
		return string(runes[:max-1]) + "…"
	}
	return t
}

// #endregion quote
