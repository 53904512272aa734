// Package router decides which pipeline answers a question: the
// schedule resolver for schedule-shaped questions, the retrieval
// pipeline for everything else.
package router

// #region imports
import (
	"strings"
)

// #endregion

// #region types

// Route names the pipeline a question is dispatched to.
type Route string

const (
	RouteSchedule Route = "schedule"
	RoutePolicy   Route = "policy"
)

// #endregion

// #region keywords

// scheduleKeywords mark a question as schedule-shaped. When a question
// mixes policy and schedule vocabulary ("what are the on-call expense
// rules?") the schedule route wins; this is a documented heuristic,
// not a strict classifier.
var scheduleKeywords = []string{
	"shift", "on-call", "oncall", "on call",
	"holiday", "availability", "hours", "schedule",
	"workday", "work day", "weekend",
}

// #endregion

// #region classify

// Classify routes a question via keyword heuristics. No model call.
func Classify(question string) Route {
	lower := strings.ToLower(strings.TrimSpace(question))
	for _, kw := range scheduleKeywords {
		if strings.Contains(lower, kw) {
			return RouteSchedule
		}
	}
	return RoutePolicy
}

// #endregion
