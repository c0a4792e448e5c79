// Package answer synthesizes grounded answers from retrieved contexts,
// applying the safety policy, the no-context fallback, and escalation
// detection.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/kona-ai/kona/internal/ai"
	"github.com/kona-ai/kona/internal/conversation"
	"github.com/kona-ai/kona/internal/log"
)

// The "no information" sentinels. The model is instructed to emit the first
// two verbatim for unanswerable questions; the third is produced locally
// when retrieval comes back empty. Any answer containing one of them is an
// escalation signal for the chat layer.
const (
	NoInfoKB           = "I don't have information about this in my knowledge base."
	NoInfoInsufficient = "I don't have enough information to answer this question."
	NoInfoNotFound     = "I couldn't find relevant information in our knowledge base to answer your question"
)

// FallbackPrefix opens a general-knowledge answer so the reader knows the
// knowledge base had nothing relevant.
const FallbackPrefix = NoInfoNotFound + ". Here's what I can tell you based on my general knowledge:\n\n"

// Refusal is the fixed sentence for requests the safety policy blocks.
const Refusal = "I can't help with that request."

// Apology is returned when generation itself fails; synthesis never
// propagates a collaborator error to the caller.
const Apology = "I'm sorry, something went wrong while generating an answer. Please try again."

var noInfoSentinels = []string{NoInfoKB, NoInfoInsufficient, NoInfoNotFound}

const groundedPrompt = `You are a helpful assistant answering questions from a team knowledge base.

Rules:
- Answer using ONLY the numbered sources below. Cite sources as (Source N) where relevant.
- If the sources do not contain the answer, reply with exactly one of these sentences:
  "%s"
  "%s"
- Refuse with exactly "%s" if the question asks for: instructions for making weapons or explosives, detailed instructions for illegal activity, methods of self-harm or harming others, exploit or malware code, or any sexual content involving minors.
- Be concise and factual. Do not invent information that is not in the sources.

%s%s

Question: %s

Answer:`

const fallbackPrompt = `You are a helpful assistant. The team knowledge base had no relevant information for this question, so answer from general knowledge.

Rules:
- If you cannot answer usefully, reply with exactly: "%s"
- Refuse with exactly "%s" if the question asks for: instructions for making weapons or explosives, detailed instructions for illegal activity, methods of self-harm or harming others, exploit or malware code, or any sexual content involving minors.
- Be concise.

%sQuestion: %s

Answer:`

// Response is a synthesized answer plus the escalation signal.
type Response struct {
	Text     string
	Escalate bool
}

// Options tunes one synthesis call.
type Options struct {
	// EnableFallback permits a general-knowledge answer when no
	// contexts were retrieved. Strict mode turns it off.
	EnableFallback bool
	// Temperature in [0,1]. Zero means ai.DefaultTemperature.
	Temperature float32
	History     conversation.History
}

// DefaultOptions enables the general-knowledge fallback.
func DefaultOptions() Options {
	return Options{EnableFallback: true}
}

// Synthesizer builds prompts and produces answers.
type Synthesizer struct {
	gen    ai.Generator
	logger log.Logger
}

// New creates a Synthesizer.
func New(gen ai.Generator, logger log.Logger) (*Synthesizer, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Synthesizer{gen: gen, logger: logger}, nil
}

// Answer applies the synthesis policy in order: empty contexts either fall
// back to general knowledge or return the fixed sentinel; otherwise a
// grounded prompt with numbered sources is generated. Generation failures
// degrade to an apology, never an error.
func (s *Synthesizer) Answer(ctx context.Context, question string, contexts []string, opts Options) Response {
	if len(contexts) == 0 {
		if !opts.EnableFallback {
			return Response{Text: NoInfoNotFound, Escalate: true}
		}
		return s.generalKnowledge(ctx, question, opts)
	}

	prompt := fmt.Sprintf(groundedPrompt,
		NoInfoKB, NoInfoInsufficient, Refusal,
		formatHistory(opts.History), FormatSources(contexts), question)

	text, err := s.gen.Generate(ctx, prompt, ai.GenConfig{Temperature: opts.Temperature})
	if err != nil {
		s.logger.Error("grounded generation failed", "error", err)
		return Response{Text: Apology, Escalate: true}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{Text: Apology, Escalate: true}
	}
	return Response{Text: text, Escalate: IsNoInfo(text)}
}

func (s *Synthesizer) generalKnowledge(ctx context.Context, question string, opts Options) Response {
	prompt := fmt.Sprintf(fallbackPrompt,
		NoInfoInsufficient, Refusal, formatHistory(opts.History), question)

	text, err := s.gen.Generate(ctx, prompt, ai.GenConfig{Temperature: opts.Temperature})
	if err != nil {
		s.logger.Error("fallback generation failed", "error", err)
		return Response{Text: Apology, Escalate: true}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{Text: Apology, Escalate: true}
	}

	full := FallbackPrefix + text
	return Response{Text: full, Escalate: IsNoInfo(text)}
}

// FormatSources numbers the retrieved contexts for the grounded prompt.
func FormatSources(contexts []string) string {
	var b strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&b, "Source %d: %s\n", i+1, strings.TrimSpace(c))
	}
	return b.String()
}

func formatHistory(h conversation.History) string {
	if len(h) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, turn := range h {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	b.WriteString("\n")
	return b.String()
}

// IsNoInfo reports whether text contains any "no information" sentinel.
func IsNoInfo(text string) bool {
	for _, s := range noInfoSentinels {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
