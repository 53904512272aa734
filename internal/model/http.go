package model

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// #endregion

// #region config

// HTTPConfig holds connection parameters for an Ollama-compatible
// model endpoint.
type HTTPConfig struct {
	EmbedURL      string
	GenerateURL   string
	EmbedModel    string
	GenerateModel string
	Timeout       time.Duration
}

// #endregion config

// #region client-struct

// HTTPClient talks to an Ollama-compatible inference server over HTTP.
type HTTPClient struct {
	config HTTPConfig
	http   *http.Client
}

// NewHTTPClient creates a client for the given endpoint configuration.
func NewHTTPClient(config HTTPConfig) *HTTPClient {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &HTTPClient{
		config: config,
		http:   &http.Client{},
	}
}

// #endregion client-struct

// #region wire-types

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// #endregion wire-types

// #region embed

// Embed requests an embedding and returns it L2-normalized so that
// cosine distance reduces to 1 - dot product downstream.
func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.post(ctx, c.config.EmbedURL, embedRequest{Model: c.config.EmbedModel, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embed returned empty vector: %w", ErrUnavailable)
	}
	return normalize(resp.Embedding), nil
}

// #endregion embed

// #region generate

const systemPrompt = `You are an internal policy assistant.
Answer using ONLY the provided context. Cite nothing outside it.
If the context does not contain the answer, say so plainly.
Answer clearly and to the point, without introductions.`

// Generate composes an answer grounded in the given chunks.
func (c *HTTPClient) Generate(ctx context.Context, prompt string, grounding []string) (string, error) {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, g := range grounding {
		fmt.Fprintf(&b, "--- [%d]\n%s\n", i+1, g)
	}
	b.WriteString("\nQuestion:\n")
	b.WriteString(prompt)
	b.WriteString("\nAnswer:")

	var resp generateResponse
	req := generateRequest{
		Model:  c.config.GenerateModel,
		System: systemPrompt,
		Prompt: b.String(),
		Stream: false,
	}
	if err := c.post(ctx, c.config.GenerateURL, req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

// #endregion generate

// #region transport

func (c *HTTPClient) post(ctx context.Context, url string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("model request failed: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("model endpoint status %d: %s: %w", resp.StatusCode, string(raw), ErrUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode model response: %w", ErrUnavailable)
	}
	return nil
}

// normalize converts to float32 and scales to unit length.
func normalize(vec []float64) []float32 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		if norm > 0 {
			out[i] = float32(v / norm)
		} else {
			out[i] = float32(v)
		}
	}
	return out
}

// #endregion transport
