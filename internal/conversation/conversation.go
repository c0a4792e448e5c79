// Package conversation holds bounded question/answer history for a chat
// session. History is a plain value: callers own it, append returns a new
// slice, and nothing here touches shared state.
package conversation

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxTurns caps history at 10 exchanges. One exchange is a user turn
// followed by an assistant turn.
const MaxTurns = 20

// Turn is a single utterance in a conversation.
type Turn struct {
	Role    Role
	Content string
}

// History is an ordered sequence of turns, oldest first.
type History []Turn

// Append records one question/answer exchange and truncates from the front
// so the result never exceeds MaxTurns. The receiver value is not modified.
func Append(h History, question, answer string) History {
	out := make(History, 0, len(h)+2)
	out = append(out, h...)
	out = append(out,
		Turn{Role: RoleUser, Content: question},
		Turn{Role: RoleAssistant, Content: answer},
	)
	if len(out) > MaxTurns {
		out = out[len(out)-MaxTurns:]
	}
	return out
}
