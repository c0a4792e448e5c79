// Package relevance gates content before it enters the corpus: does this
// text belong in a team knowledge base at all? The primary judge is an LLM
// returning a JSON score; when that fails (network, quota, unparseable
// output) a keyword heuristic takes over so the gate never hard-fails.
package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kona-ai/kona/internal/ai"
	"github.com/kona-ai/kona/internal/log"
	"github.com/kona-ai/kona/internal/textproc"
)

// ScoreThreshold is the minimum 0-100 score for content to be treated as
// knowledge-base relevant.
const ScoreThreshold = 60

// keywordWeight is the score each matched keyword contributes in the
// fallback heuristic.
const keywordWeight = 10

// fallbackKeywords mark content that usually belongs in internal knowledge.
var fallbackKeywords = []string{
	"process",
	"guide",
	"documentation",
	"procedure",
	"workflow",
	"meeting",
	"notes",
	"decision",
	"policy",
	"tool",
	"how to",
}

const relevancePrompt = `You decide whether a piece of text belongs in an internal knowledge base containing team documentation, processes, policies, meeting notes, and guides.

Text: %s

Score how well the text fits that kind of content from 0 to 100.
Output JSON only: {"score": <0-100>, "reasoning": "..."}`

// Result reports the gate's decision.
type Result struct {
	Relevant bool
	Score    int
	// Fallback is true when the keyword heuristic decided because the
	// LLM judgment was unavailable.
	Fallback bool
}

// Checker scores content relevance.
type Checker struct {
	gen    ai.Generator
	logger log.Logger
}

// New creates a Checker. A nil generator means keyword-only scoring.
func New(gen ai.Generator, logger log.Logger) *Checker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Checker{gen: gen, logger: logger}
}

// Check scores the content. LLM failures degrade to the keyword heuristic
// rather than propagating.
func (c *Checker) Check(ctx context.Context, content string) Result {
	if c.gen != nil {
		if score, err := c.llmScore(ctx, content); err == nil {
			return Result{Relevant: score >= ScoreThreshold, Score: score}
		} else {
			c.logger.Warn("relevance LLM check failed, using keyword fallback", "error", err)
		}
	}

	score := KeywordScore(content)
	return Result{Relevant: score >= ScoreThreshold, Score: score, Fallback: true}
}

func (c *Checker) llmScore(ctx context.Context, content string) (int, error) {
	raw, err := c.gen.Generate(ctx, fmt.Sprintf(relevancePrompt, content), ai.GenConfig{
		Temperature: 0.1,
	})
	if err != nil {
		return 0, err
	}

	text := stripCodeFences(raw)
	var parsed struct {
		Score int `json:"score"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return 0, fmt.Errorf("parsing relevance score: %w (raw: %q)", err, truncate(text, 200))
	}
	if parsed.Score < 0 || parsed.Score > 100 {
		return 0, fmt.Errorf("relevance score %d out of range", parsed.Score)
	}
	return parsed.Score, nil
}

// KeywordScore is the deterministic fallback: each matched keyword adds a
// fixed weight, capped at 100. Matching runs over normalized text so case
// and punctuation do not matter.
func KeywordScore(content string) int {
	normalized := textproc.Normalize(content)
	score := 0
	for _, kw := range fallbackKeywords {
		if strings.Contains(normalized, kw) {
			score += keywordWeight
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// stripCodeFences removes ```json ... ``` wrapping from LLM output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// truncate shortens s to at most n bytes for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
