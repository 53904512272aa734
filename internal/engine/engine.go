// Package engine wires the full ask pipeline: router, FAQ lookup,
// index retrieval, confidence scoring, composition, escalation, and
// the audit trail.
package engine

// #region imports
import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/helpdesk-labs/policy-engine/internal/access"
	"github.com/helpdesk-labs/policy-engine/internal/audit"
	"github.com/helpdesk-labs/policy-engine/internal/compose"
	"github.com/helpdesk-labs/policy-engine/internal/confidence"
	"github.com/helpdesk-labs/policy-engine/internal/config"
	"github.com/helpdesk-labs/policy-engine/internal/index"
	"github.com/helpdesk-labs/policy-engine/internal/model"
	"github.com/helpdesk-labs/policy-engine/internal/review"
	"github.com/helpdesk-labs/policy-engine/internal/router"
	"github.com/helpdesk-labs/policy-engine/internal/schedule"
)

// #endregion

// #region types

// Response is the answer to one question, whichever pipeline produced
// it.
type Response struct {
	compose.Answer
	Route router.Route
	// FromFAQ is set when a promoted review answer short-circuited
	// retrieval.
	FromFAQ bool
}

// Engine owns every subsystem. All state shares one SQLite file.
type Engine struct {
	idx       *index.Index
	queue     *review.Queue
	composer  *compose.Composer
	sched     *schedule.Store
	decisions *audit.Log
	client    model.Client
	topK      int
}

// #endregion

// #region constructor

// New opens the database at cfg.DBPath and wires every subsystem
// around the given model client.
func New(cfg config.Config, client model.Client) (*Engine, error) {
	idx, err := index.NewIndex(cfg.DBPath, client)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	queue, err := review.NewQueue(idx.DB())
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("open review queue: %w", err)
	}
	sched, err := schedule.NewStore(idx.DB())
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("open schedule store: %w", err)
	}
	decisions, err := audit.NewLog(idx.DB())
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("open decision log: %w", err)
	}

	composer := compose.NewComposer(client, queue, compose.Config{
		CitationCutoff: cfg.Retrieval.CitationCutoff,
		NotFoundCutoff: cfg.Retrieval.NotFoundCutoff,
		QuoteLength:    cfg.Retrieval.QuoteLength,
		Thresholds: confidence.Thresholds{
			High: cfg.Confidence.High,
			Low:  cfg.Confidence.Low,
		},
	})

	return &Engine{
		idx:       idx,
		queue:     queue,
		composer:  composer,
		sched:     sched,
		decisions: decisions,
		client:    client,
		topK:      cfg.Retrieval.TopK,
	}, nil
}

func (e *Engine) Close() error {
	return e.idx.Close()
}

// #endregion constructor

// #region ask

// Ask routes a question to the schedule resolver or the retrieval
// pipeline and records the decision.
func (e *Engine) Ask(ctx context.Context, question string, asker access.Level) (Response, error) {
	if router.Classify(question) == router.RouteSchedule {
		return e.AskSchedule(ctx, question, asker)
	}
	return e.AskPolicy(ctx, question, asker)
}

// AskPolicy answers through FAQ lookup, retrieval, and composition.
// Promoted review answers win over retrieval on an exact normalized
// question match.
func (e *Engine) AskPolicy(ctx context.Context, question string, asker access.Level) (Response, error) {
	if entry, ok, err := e.queue.LookupFAQ(question); err != nil {
		return Response{}, fmt.Errorf("faq lookup: %w", err)
	} else if ok {
		log.Printf("[ENGINE] faq hit: %q", question)
		resp := Response{
			Answer: compose.Answer{
				Answer:     entry.Answer,
				Confidence: confidence.High,
			},
			Route:   router.RoutePolicy,
			FromFAQ: true,
		}
		e.record(question, asker, resp)
		return resp, nil
	}

	vec, err := e.client.Embed(ctx, question)
	if err != nil {
		return Response{}, fmt.Errorf("embed question: %w", err)
	}
	matches, err := e.idx.Query(ctx, vec, asker, e.topK)
	if err != nil {
		return Response{}, fmt.Errorf("query index: %w", err)
	}
	answer, err := e.composer.Compose(ctx, question, asker, matches)
	if err != nil {
		return Response{}, err
	}
	log.Printf("[ENGINE] policy answer: grade=%s best=%.3f citations=%d review=%q",
		answer.Confidence, answer.BestDistance, len(answer.Citations), answer.ReviewID)

	resp := Response{Answer: answer, Route: router.RoutePolicy}
	e.record(question, asker, resp)
	return resp, nil
}

// AskSchedule answers directly from the schedule configuration. It
// never consults the index and never escalates.
func (e *Engine) AskSchedule(_ context.Context, question string, asker access.Level) (Response, error) {
	cfg, ok, err := e.sched.Get()
	if err != nil {
		return Response{}, fmt.Errorf("load schedule: %w", err)
	}
	text := "No work schedule has been configured yet."
	if ok {
		text = schedule.Resolve(cfg, question, time.Now())
	}

	resp := Response{
		Answer: compose.Answer{Answer: text},
		Route:  router.RouteSchedule,
	}
	e.record(question, asker, resp)
	return resp, nil
}

// record appends to the decision log. Logging failures never fail the
// ask.
func (e *Engine) record(question string, asker access.Level, resp Response) {
	reason := ""
	if resp.ReviewID != "" {
		if item, err := e.queue.Get(resp.ReviewID); err == nil {
			reason = string(item.Reason)
		}
	}
	err := e.decisions.Record(audit.Entry{
		Question:     question,
		AskerAccess:  string(asker),
		Route:        string(resp.Route),
		Grade:        string(resp.Confidence),
		BestDistance: resp.BestDistance,
		Matched:      len(resp.Citations) > 0 || resp.FromFAQ,
		Reason:       reason,
		ReviewID:     resp.ReviewID,
	})
	if err != nil {
		log.Printf("[ENGINE] failed to record decision: %v", err)
	}
}

// #endregion ask

// #region passthrough

// Ingest adds a new policy document version.
func (e *Engine) Ingest(ctx context.Context, req index.IngestRequest) (index.Doc, error) {
	return e.idx.Ingest(ctx, req)
}

// ListDocs returns all documents, newest first.
func (e *Engine) ListDocs(ctx context.Context) ([]index.Doc, error) {
	return e.idx.ListDocs(ctx)
}

// ListReview returns review items filtered by status; empty status
// means all.
func (e *Engine) ListReview(status review.Status) ([]review.Item, error) {
	return e.queue.List(status)
}

// ResolveReview closes an open review item, optionally promoting the
// final answer to the FAQ fast path.
func (e *Engine) ResolveReview(id, finalAnswer string, promoteToFAQ bool) (review.Item, error) {
	return e.queue.Resolve(id, finalAnswer, promoteToFAQ)
}

// LookupFAQ checks the promoted-answer fast path without running the
// ask pipeline.
func (e *Engine) LookupFAQ(question string) (review.FAQEntry, bool, error) {
	return e.queue.LookupFAQ(question)
}

// GetSchedule returns the current schedule config, if one is set.
func (e *Engine) GetSchedule() (schedule.Config, bool, error) {
	return e.sched.Get()
}

// SetSchedule replaces the schedule config wholesale.
func (e *Engine) SetSchedule(cfg schedule.Config) error {
	return e.sched.Set(cfg)
}

// RecentDecisions returns the newest audit entries.
func (e *Engine) RecentDecisions(limit int) ([]audit.Entry, error) {
	return e.decisions.Recent(limit)
}

// #endregion passthrough
