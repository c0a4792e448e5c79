package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kona-ai/kona/internal/ai"
	"github.com/kona-ai/kona/internal/conversation"
	"github.com/kona-ai/kona/internal/log"
)

// mockGenerator records the prompt and returns a canned response.
type mockGenerator struct {
	response   string
	genErr     error
	lastPrompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string, _ ai.GenConfig) (string, error) {
	m.lastPrompt = prompt
	if m.genErr != nil {
		return "", m.genErr
	}
	return m.response, nil
}

func newSynthesizer(t *testing.T, gen ai.Generator) *Synthesizer {
	t.Helper()
	s, err := New(gen, log.NewNop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestAnswerGrounded(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{response: "Park in lot B (Source 1)."}
	s := newSynthesizer(t, gen)

	resp := s.Answer(context.Background(), "where do I park?",
		[]string{"parking is in lot B", "badge required after 6pm"}, DefaultOptions())

	if resp.Text != "Park in lot B (Source 1)." {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Escalate {
		t.Error("grounded answer should not escalate")
	}

	// The prompt carries numbered sources and the question.
	if !strings.Contains(gen.lastPrompt, "Source 1: parking is in lot B") {
		t.Errorf("prompt missing first source:\n%s", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "Source 2: badge required after 6pm") {
		t.Errorf("prompt missing second source:\n%s", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "Question: where do I park?") {
		t.Errorf("prompt missing question:\n%s", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, Refusal) {
		t.Errorf("prompt missing safety refusal sentence:\n%s", gen.lastPrompt)
	}
}

func TestAnswerNoContextStrict(t *testing.T) {
	t.Parallel()

	s := newSynthesizer(t, &mockGenerator{response: "should not be called"})

	resp := s.Answer(context.Background(), "anything", nil, Options{EnableFallback: false})
	if resp.Text != NoInfoNotFound {
		t.Errorf("Text = %q, want exact sentinel", resp.Text)
	}
	if !resp.Escalate {
		t.Error("strict no-context must escalate")
	}
}

func TestAnswerNoContextFallback(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{response: "Generally, guest parking is signposted near reception."}
	s := newSynthesizer(t, gen)

	resp := s.Answer(context.Background(), "where do guests park?", nil, DefaultOptions())

	if !strings.HasPrefix(resp.Text, FallbackPrefix) {
		t.Errorf("fallback answer missing disclaimer prefix: %q", resp.Text)
	}
	if !strings.HasSuffix(resp.Text, "signposted near reception.") {
		t.Errorf("fallback answer missing generated text: %q", resp.Text)
	}
	// The model produced a real answer, so no escalation despite the
	// sentinel-bearing prefix.
	if resp.Escalate {
		t.Error("useful fallback answer should not escalate")
	}
}

func TestAnswerFallbackStillNoInfo(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{response: NoInfoInsufficient}
	s := newSynthesizer(t, gen)

	resp := s.Answer(context.Background(), "something obscure", nil, DefaultOptions())
	if !resp.Escalate {
		t.Error("fallback that still has no information must escalate")
	}
}

func TestAnswerSentinelEscalation(t *testing.T) {
	t.Parallel()

	for _, sentinel := range []string{NoInfoKB, NoInfoInsufficient, NoInfoNotFound} {
		gen := &mockGenerator{response: "Well... " + sentinel + " Sorry!"}
		s := newSynthesizer(t, gen)

		resp := s.Answer(context.Background(), "q", []string{"some context"}, DefaultOptions())
		if !resp.Escalate {
			t.Errorf("answer containing %q did not escalate", sentinel)
		}
	}
}

func TestAnswerGenerationFailure(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{genErr: errors.New("model unavailable")}
	s := newSynthesizer(t, gen)

	resp := s.Answer(context.Background(), "q", []string{"context"}, DefaultOptions())
	if resp.Text != Apology {
		t.Errorf("Text = %q, want apology", resp.Text)
	}
	if !resp.Escalate {
		t.Error("generation failure should escalate")
	}
}

func TestAnswerIncludesHistory(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{response: "ok"}
	s := newSynthesizer(t, gen)

	history := conversation.Append(nil, "earlier question", "earlier answer")
	_ = s.Answer(context.Background(), "follow-up", []string{"ctx"}, Options{
		EnableFallback: true,
		History:        history,
	})

	if !strings.Contains(gen.lastPrompt, "user: earlier question") {
		t.Errorf("prompt missing history:\n%s", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "assistant: earlier answer") {
		t.Errorf("prompt missing assistant turn:\n%s", gen.lastPrompt)
	}
}

func TestIsNoInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{NoInfoKB, true},
		{"prefix " + NoInfoInsufficient + " suffix", true},
		{NoInfoNotFound + ".", true},
		{"Park in lot B.", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsNoInfo(tt.text); got != tt.want {
			t.Errorf("IsNoInfo(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestFormatSources(t *testing.T) {
	t.Parallel()

	got := FormatSources([]string{"  first  ", "second"})
	want := "Source 1: first\nSource 2: second\n"
	if got != want {
		t.Errorf("FormatSources() = %q, want %q", got, want)
	}
}
