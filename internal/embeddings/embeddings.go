// Package embeddings defines the pluggable vector-provider adapter. The
// engine treats providers as an optional extension: nothing in the tool
// surface depends on one being configured, and no similarity contract is
// exposed until the integration lands.
package embeddings

import "errors"

// ErrNotConfigured is returned by the disabled provider.
var ErrNotConfigured = errors.New("no embedding provider configured")

// Provider computes sentence embeddings for entity text.
type Provider interface {
	// Embed returns the vector for one text.
	Embed(text string) ([]float32, error)
	// EmbedBatch embeds several texts at once.
	EmbedBatch(texts []string) ([][]float32, error)
	// Dimension is the vector width this provider produces.
	Dimension() int
}

// Config selects a provider implementation.
type Config struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// DefaultConfig matches the upstream default: a local MiniLM model.
func DefaultConfig() Config {
	return Config{Provider: "local", Model: "all-MiniLM-L6-v2"}
}

// IsLocal reports whether the provider runs in-process.
func (c Config) IsLocal() bool { return c.Provider == "local" }

// Disabled is the provider used when embeddings are not configured;
// every call fails with ErrNotConfigured.
type Disabled struct{}

func (Disabled) Embed(string) ([]float32, error)          { return nil, ErrNotConfigured }
func (Disabled) EmbedBatch([]string) ([][]float32, error) { return nil, ErrNotConfigured }
func (Disabled) Dimension() int                           { return 0 }
