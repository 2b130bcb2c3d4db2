package agent

import (
	"fmt"
	"strings"
)

// EventType identifies the kind of agent event.
type EventType string

const (
	EventTypeLLMTurn    EventType = "llm_turn"
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypeSteering   EventType = "steering"
	EventTypeComplete   EventType = "complete"
	EventTypeError      EventType = "error"
)

// Event reports loop progress. Sends never block; a slow reader misses events.
type Event struct {
	Type     EventType `json:"type"`
	Turn     int       `json:"turn,omitempty"`
	ToolName string    `json:"tool_name,omitempty"`
	Content  string    `json:"content,omitempty"`
	IsError  bool      `json:"is_error,omitempty"`
}

// String renders the event as one line, content cut to its first line.
func (e Event) String() string {
	content, _, cut := strings.Cut(e.Content, "\n")
	if cut {
		content += " …"
	}
	switch e.Type {
	case EventTypeToolCall:
		return fmt.Sprintf("[%d] %s %s", e.Turn, e.ToolName, content)
	case EventTypeToolResult:
		mark := "="
		if e.IsError {
			mark = "!"
		}
		return fmt.Sprintf("[%d]   %s %s", e.Turn, mark, content)
	default:
		return fmt.Sprintf("[%d] %s: %s", e.Turn, e.Type, content)
	}
}
