package agent

import (
	"fmt"

	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

const (
	defaultTruncationHeadTurns = 2
	defaultTruncationTailTurns = 10
)

// Session manages the conversation history for an agent loop.
type Session struct {
	messages []llm.Message
	system   string
}

// NewSession creates a session with an optional system prompt.
func NewSession(system string) *Session {
	return &Session{system: system}
}

// Append adds a message to the session history.
func (s *Session) Append(msg llm.Message) {
	s.messages = append(s.messages, msg)
}

// Messages returns all messages in the session.
func (s *Session) Messages() []llm.Message {
	return s.messages
}

// System returns the system prompt.
func (s *Session) System() string {
	return s.system
}

// Len returns the number of messages.
func (s *Session) Len() int {
	return len(s.messages)
}

// Truncate keeps the first headN and last tailN messages, inserting a
// [TRUNCATED] marker between them when messages are dropped. The seed
// instruction always survives. The head never ends on an assistant tool call
// and the tail always starts on an assistant message, so no tool result is
// separated from the call that produced it.
func (s *Session) Truncate(headN, tailN int) {
	total := len(s.messages)
	headN = max(headN, 1)
	if total <= headN+tailN {
		return
	}
	for headN > 1 && hasToolUse(s.messages[headN-1]) {
		headN--
	}
	tailStart := total - tailN
	for tailStart < total && s.messages[tailStart].Role != llm.RoleAssistant {
		tailStart++
	}
	if tailStart >= total {
		return
	}
	omitted := tailStart - headN
	marker := llm.TextMessage(llm.RoleUser,
		fmt.Sprintf("[TRUNCATED: %d messages omitted]", omitted))

	combined := make([]llm.Message, 0, headN+1+total-tailStart)
	combined = append(combined, s.messages[:headN]...)
	combined = append(combined, marker)
	combined = append(combined, s.messages[tailStart:]...)
	s.messages = combined
}

func hasToolUse(m llm.Message) bool {
	for _, b := range m.Content {
		if b.Type == llm.ContentTypeToolUse {
			return true
		}
	}
	return false
}
