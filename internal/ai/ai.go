// Package ai defines the model collaborators the corpus depends on: an
// embedding service and a generative service. Consumers hold the small
// interfaces; the Gemini implementation lives alongside them.
package ai

import "context"

// Embedder produces a vector embedding for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg GenConfig) (string, error)
}

// GenConfig carries per-call generation parameters. Zero values fall back
// to the service defaults below.
type GenConfig struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
}

// Generation defaults matching the production deployment.
const (
	DefaultTemperature     float32 = 0.3
	DefaultTopP            float32 = 0.95
	DefaultTopK            float32 = 40
	DefaultMaxOutputTokens int32   = 1024
)

// withDefaults fills unset fields.
func (c GenConfig) withDefaults() GenConfig {
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.TopP == 0 {
		c.TopP = DefaultTopP
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	return c
}
