package relevance

import (
	"context"
	"errors"
	"testing"

	"github.com/kona-ai/kona/internal/ai"
	"github.com/kona-ai/kona/internal/log"
)

// mockGenerator returns a canned response or error.
type mockGenerator struct {
	response  string
	genErr    error
	callCount int
}

func (m *mockGenerator) Generate(context.Context, string, ai.GenConfig) (string, error) {
	m.callCount++
	if m.genErr != nil {
		return "", m.genErr
	}
	return m.response, nil
}

func TestCheckLLMScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		response     string
		wantRelevant bool
		wantScore    int
	}{
		{"above threshold", `{"score": 85, "reasoning": "asks about process"}`, true, 85},
		{"at threshold", `{"score": 60}`, true, 60},
		{"below threshold", `{"score": 20, "reasoning": "small talk"}`, false, 20},
		{"fenced json", "```json\n{\"score\": 90}\n```", true, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := New(&mockGenerator{response: tt.response}, log.NewNop())
			got := c.Check(context.Background(), "what is the deploy process?")
			if got.Relevant != tt.wantRelevant || got.Score != tt.wantScore {
				t.Errorf("Check() = %+v, want relevant=%v score=%d", got, tt.wantRelevant, tt.wantScore)
			}
			if got.Fallback {
				t.Error("LLM path should not set Fallback")
			}
		})
	}
}

func TestCheckFallsBackOnError(t *testing.T) {
	t.Parallel()

	c := New(&mockGenerator{genErr: errors.New("quota exceeded")}, log.NewNop())
	got := c.Check(context.Background(), "Where is the documentation for the deploy process?")
	if !got.Fallback {
		t.Fatal("expected keyword fallback")
	}
	// "documentation" + "process" = 20, below threshold.
	if got.Score != 20 || got.Relevant {
		t.Errorf("fallback result = %+v", got)
	}
}

func TestCheckFallsBackOnGarbage(t *testing.T) {
	t.Parallel()

	for _, response := range []string{"not json at all", `{"score": 400}`, ""} {
		c := New(&mockGenerator{response: response}, log.NewNop())
		got := c.Check(context.Background(), "anything")
		if !got.Fallback {
			t.Errorf("response %q: expected fallback, got %+v", response, got)
		}
	}
}

func TestCheckWithoutGenerator(t *testing.T) {
	t.Parallel()

	c := New(nil, log.NewNop())
	got := c.Check(context.Background(), "what is the policy?")
	if !got.Fallback {
		t.Error("nil generator should always use the keyword path")
	}
}

func TestKeywordScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"no keywords", "what's for lunch?", 0},
		{"single keyword", "where is the parking policy?", 10},
		{"case and punctuation ignored", "What's the POLICY, and the PROCESS?", 20},
		{"how to phrase", "how to request a new tool", 20},
		{
			"capped at 100",
			"process guide documentation procedure workflow meeting notes decision policy tool how to",
			100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KeywordScore(tt.content); got != tt.want {
				t.Errorf("KeywordScore(%q) = %d, want %d", tt.content, got, tt.want)
			}
		})
	}
}
