package model

// #region imports
import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// #endregion

// #region stopwords

// stopwords contains common English words excluded from lexical
// embeddings so that shared filler does not count as similarity.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "whats": true, "which": true, "who": true,
	"how": true, "when": true, "where": true, "why": true, "you": true,
	"me": true, "i": true, "my": true, "your": true, "we": true,
	"they": true, "our": true, "there": true,
}

// tokenize splits text into lowercase non-stopword tokens.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var tokens []string
	for _, w := range words {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// #endregion stopwords

// #region lexical-client

// lexicalDims is the dimensionality of the hashed bag-of-words space.
const lexicalDims = 256

// LexicalClient is a deterministic, dependency-free Client. Embeddings
// are hashed bag-of-words vectors, so texts sharing vocabulary land
// close in cosine space. Generation is a template over the grounding.
// It backs tests and offline runs of the cmd binaries; production runs
// use HTTPClient.
type LexicalClient struct{}

// NewLexicalClient returns the deterministic lexical provider.
func NewLexicalClient() *LexicalClient {
	return &LexicalClient{}
}

// Embed hashes tokens into a fixed-size normalized vector.
func (c *LexicalClient) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, lexicalDims)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec, nil
	}
	for _, tok := range tokens {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%lexicalDims]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}

// Generate produces a short grounded template answer.
func (c *LexicalClient) Generate(_ context.Context, prompt string, grounding []string) (string, error) {
	if len(grounding) == 0 {
		return "No relevant policy content was found for this question.", nil
	}
	top := strings.Join(strings.Fields(grounding[0]), " ")
	if len(top) > 220 {
		top = top[:219] + "…"
	}
	return fmt.Sprintf("According to the policy: %s", top), nil
}

// #endregion lexical-client
