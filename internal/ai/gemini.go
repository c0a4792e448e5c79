package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/kona-ai/kona/internal/faults"
	"github.com/kona-ai/kona/internal/log"
)

// Model defaults used when the config leaves them empty.
const (
	DefaultGenerationModel = "gemini-2.0-flash-001"
	DefaultEmbeddingModel  = "text-embedding-005"
)

// GeminiConfig configures the Gemini-backed collaborators.
type GeminiConfig struct {
	APIKey          string
	GenerationModel string
	EmbeddingModel  string

	// RequestsPerSecond caps outbound model calls. Zero means the
	// default of 10 sustained with a burst of 30.
	RequestsPerSecond float64
	Burst             int
}

// Gemini implements Embedder and Generator against the Gemini API. A single
// client serves both so the rate limiter covers every outbound call.
type Gemini struct {
	client     *genai.Client
	genModel   string
	embedModel string
	limiter    *rate.Limiter
	logger     log.Logger
}

var (
	_ Embedder  = (*Gemini)(nil)
	_ Generator = (*Gemini)(nil)
)

// NewGemini creates the shared Gemini client. Missing or rejected
// credentials surface as faults.ErrAuth so callers can distinguish a
// misconfigured deployment from a transient failure.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger log.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required: %w", faults.ErrAuth)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w (%w)", err, faults.ErrAuth)
	}

	genModel := cfg.GenerationModel
	if genModel == "" {
		genModel = DefaultGenerationModel
	}
	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 30
	}

	return &Gemini{
		client:     client,
		genModel:   genModel,
		embedModel: embedModel,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		logger:     logger,
	}, nil
}

// Embed returns the embedding vector for text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embedModel,
		genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w (%w)", err, faults.ErrNetwork)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding response: %w", faults.ErrNetwork)
	}

	return resp.Embeddings[0].Values, nil
}

// Generate returns the model's text response for prompt.
func (g *Gemini) Generate(ctx context.Context, prompt string, cfg GenConfig) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	cfg = cfg.withDefaults()
	resp, err := g.client.Models.GenerateContent(ctx, g.genModel,
		genai.Text(prompt), &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(cfg.Temperature),
			TopP:            genai.Ptr(cfg.TopP),
			TopK:            genai.Ptr(cfg.TopK),
			MaxOutputTokens: cfg.MaxOutputTokens,
		})
	if err != nil {
		return "", fmt.Errorf("generating content: %w (%w)", err, faults.ErrNetwork)
	}

	text := resp.Text()
	if text == "" {
		g.logger.Warn("model returned empty response", "model", g.genModel)
	}
	return text, nil
}
