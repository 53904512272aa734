package compose

// #region imports
import (
	"regexp"

	"github.com/helpdesk-labs/policy-engine/internal/index"
)

// #endregion

// #region patterns

var (
	numericIntentPattern = regexp.MustCompile(`(?i)\blimit\b|\bmaximum\b|\bmax\b|how much|per day|per night|\$|\bdollars?\b`)
	moneyPattern         = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d+)?`)
)

// #endregion patterns

// #region detect-conflict

// DetectConflict reports whether the top matches disagree on a numeric
// limit for a question that asks for one. The rule: the question
// carries numeric intent (limit/max/how much/$), at least two distinct
// docs contribute dollar amounts, and those docs' amount sets are
// disjoint.
//
// Known false negatives: docs that partially overlap on amounts, and
// contradictions expressed without a dollar sign. Known false
// positives: two docs quoting amounts for different categories. Both
// err toward or away from escalation predictably, and the predicate
// can be swapped without touching the pipeline.
func DetectConflict(question string, matches []index.Match) bool {
	if !numericIntentPattern.MatchString(question) {
		return false
	}

	amountsByDoc := make(map[string]map[string]bool)
	for _, m := range matches {
		for _, amt := range moneyPattern.FindAllString(m.Chunk.Content, -1) {
			if amountsByDoc[m.Chunk.DocID] == nil {
				amountsByDoc[m.Chunk.DocID] = make(map[string]bool)
			}
			amountsByDoc[m.Chunk.DocID][normalizeAmount(amt)] = true
		}
	}
	if len(amountsByDoc) < 2 {
		return false
	}

	sets := make([]map[string]bool, 0, len(amountsByDoc))
	for _, s := range amountsByDoc {
		sets = append(sets, s)
	}
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			if disjoint(sets[i], sets[j]) {
				return true
			}
		}
	}
	return false
}

// #endregion detect-conflict

// #region helpers

var amountStripPattern = regexp.MustCompile(`[\s,$]`)

func normalizeAmount(s string) string {
	return amountStripPattern.ReplaceAllString(s, "")
}

func disjoint(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return false
		}
	}
	return true
}

// #endregion helpers
