package model

// #region imports
import (
	"context"
	"errors"
)

// #endregion

// #region errors

// ErrUnavailable is returned when the embedding/generation capability
// times out or fails. The engine surfaces it unchanged; retry policy
// belongs to the caller, never to the core.
var ErrUnavailable = errors.New("model unavailable")

// #endregion errors

// #region client

// Client is the abstract model capability the engine consumes:
// embed(text) → vector and generate(prompt, grounding) → text.
// Implementations must honor ctx deadlines.
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string, grounding []string) (string, error)
}

// #endregion client
