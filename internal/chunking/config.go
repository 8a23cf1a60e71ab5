package chunking

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned for chunk settings that cannot produce a
// bounded, progressing split.
var ErrInvalidConfig = errors.New("invalid chunking config")

// Per-request character budgets for the supported providers.
const (
	OpenAIMaxChunkSize = 8000
	GeminiMaxChunkSize = 30000

	DefaultOverlap      = 200
	DefaultMinChunkSize = 1000
	DefaultMaxChunks    = 20
)

// Config bounds how source text is split. Sizes are in bytes of UTF-8 text.
type Config struct {
	MaxChunkSize int `json:"maxChunkSize" yaml:"maxChunkSize"`
	Overlap      int `json:"overlap" yaml:"overlap"`
	MinChunkSize int `json:"minChunkSize" yaml:"minChunkSize"`
	MaxChunks    int `json:"maxChunks" yaml:"maxChunks"`
}

// BudgetFor returns the default config for a provider. Unknown providers get
// the smallest budget.
func BudgetFor(provider string) Config {
	cfg := Config{
		MaxChunkSize: OpenAIMaxChunkSize,
		Overlap:      DefaultOverlap,
		MinChunkSize: DefaultMinChunkSize,
		MaxChunks:    DefaultMaxChunks,
	}
	if provider == "gemini" {
		cfg.MaxChunkSize = GeminiMaxChunkSize
	}
	return cfg
}

// Validate checks that the config makes forward progress on every step.
func (c Config) Validate() error {
	switch {
	case c.MaxChunkSize <= 0:
		return fmt.Errorf("%w: maxChunkSize must be > 0, got %d", ErrInvalidConfig, c.MaxChunkSize)
	case c.Overlap < 0 || c.Overlap >= c.MaxChunkSize:
		return fmt.Errorf("%w: overlap must be >= 0 and < maxChunkSize, got %d", ErrInvalidConfig, c.Overlap)
	case c.MinChunkSize <= 0 || c.MinChunkSize >= c.MaxChunkSize:
		return fmt.Errorf("%w: minChunkSize must be > 0 and < maxChunkSize, got %d", ErrInvalidConfig, c.MinChunkSize)
	case c.MaxChunks <= 0:
		return fmt.Errorf("%w: maxChunks must be > 0, got %d", ErrInvalidConfig, c.MaxChunks)
	}
	return nil
}
