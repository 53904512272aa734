// Package config loads engine settings from an optional engine.toml,
// applies environment overrides, and validates the result.
package config

// #region imports
import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// #endregion

// #region types

// Config is the full engine configuration. TOML file values override
// defaults; environment variables override the file.
type Config struct {
	DBPath string `toml:"db_path" validate:"required"`

	Model struct {
		EmbedURL       string `toml:"embed_url" validate:"required,url"`
		GenerateURL    string `toml:"generate_url" validate:"required,url"`
		EmbedModel     string `toml:"embed_model" validate:"required"`
		GenerateModel  string `toml:"generate_model" validate:"required"`
		TimeoutSeconds int    `toml:"timeout_seconds" validate:"min=1"`
	} `toml:"model"`

	Confidence struct {
		High float64 `toml:"high" validate:"gt=0"`
		Low  float64 `toml:"low" validate:"gtfield=High"`
	} `toml:"confidence"`

	Retrieval struct {
		TopK           int     `toml:"top_k" validate:"min=1"`
		CitationCutoff float64 `toml:"citation_cutoff" validate:"gt=0"`
		NotFoundCutoff float64 `toml:"not_found_cutoff" validate:"gt=0"`
		QuoteLength    int     `toml:"quote_length" validate:"min=1"`
	} `toml:"retrieval"`
}

// ErrInvalid is returned by Load for a malformed configuration.
var ErrInvalid = errors.New("invalid config")

// #endregion

// #region defaults

// Default returns the configuration used when no file or overrides
// are present.
func Default() Config {
	var cfg Config
	cfg.DBPath = "policy_engine.db"
	cfg.Model.EmbedURL = "http://localhost:11434/api/embeddings"
	cfg.Model.GenerateURL = "http://localhost:11434/api/generate"
	cfg.Model.EmbedModel = "nomic-embed-text"
	cfg.Model.GenerateModel = "llama3.2"
	cfg.Model.TimeoutSeconds = 30
	cfg.Confidence.High = 0.25
	cfg.Confidence.Low = 0.5
	cfg.Retrieval.TopK = 6
	cfg.Retrieval.CitationCutoff = 0.95
	cfg.Retrieval.NotFoundCutoff = 0.9
	cfg.Retrieval.QuoteLength = 220
	return cfg
}

// #endregion defaults

// #region load

// Load builds the configuration from path (skipped when the file does
// not exist), then environment overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DBPath = envOr("ENGINE_DB", cfg.DBPath)
	cfg.Model.EmbedURL = envOr("EMBED_URL", cfg.Model.EmbedURL)
	cfg.Model.GenerateURL = envOr("GENERATE_URL", cfg.Model.GenerateURL)
	cfg.Model.EmbedModel = envOr("EMBED_MODEL", cfg.Model.EmbedModel)
	cfg.Model.GenerateModel = envOr("GENERATE_MODEL", cfg.Model.GenerateModel)
	cfg.Confidence.High = envFloatOr("CONFIDENCE_HIGH", cfg.Confidence.High)
	cfg.Confidence.Low = envFloatOr("CONFIDENCE_LOW", cfg.Confidence.Low)
	cfg.Retrieval.TopK = envIntOr("RETRIEVAL_TOP_K", cfg.Retrieval.TopK)
}

// #endregion load

// #region env-helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// #endregion env-helpers
