// Package provider adapts LLM vendor APIs behind one capability interface.
package provider

import "context"

// Message is a chat message in provider payload form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one piece of a streamed response. A non-nil Err terminates the
// stream; the channel is closed after the final chunk.
type Chunk struct {
	Text string
	Err  error
}

// Provider is the capability interface the orchestrator consumes. Callers
// branch only on SupportsStreaming, never on vendor identity.
type Provider interface {
	// SupportsStreaming reports whether GenerateStream is usable.
	SupportsStreaming() bool

	// Generate returns the complete response text in one call.
	Generate(ctx context.Context, messages []Message, modelID string) (string, error)

	// GenerateStream opens a streaming call. A setup failure (including a
	// non-2xx response) is reported through the returned error before any
	// chunk is produced; failures after that arrive as a terminal Chunk.Err.
	GenerateStream(ctx context.Context, messages []Message, modelID string) (<-chan Chunk, error)
}

// ModelConfig describes one model offered by a provider.
type ModelConfig struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Color       string `yaml:"color" json:"color"`
	Icon        string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Prompt      string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
}

// Config is one provider entry from providers.yaml.
type Config struct {
	ID      string        `yaml:"id" json:"id"`
	Name    string        `yaml:"name" json:"name"`
	Type    string        `yaml:"type" json:"type"`
	APIKey  string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Models  []ModelConfig `yaml:"models" json:"models"`
}
