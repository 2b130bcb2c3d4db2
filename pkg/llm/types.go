package llm

import (
	"fmt"
	"strings"
)

// Role identifies who sent a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentType identifies the payload of a ContentBlock.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// ContentBlock is one element of a message.
type ContentBlock struct {
	Type       ContentType `json:"type"`
	Text       string      `json:"text,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// ToolUse is a model's request to run a tool. Input is raw JSON.
type ToolUse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input []byte `json:"input"`
}

// ToolResult answers a ToolUse.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// Message is one conversation turn.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextMessage builds a message holding a single text block.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Type: ContentTypeText, Text: text}}}
}

// ToolDefinition describes a tool offered to the model. InputSchema is a
// JSON Schema object.
type ToolDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema []byte `json:"input_schema"`
}

// GenerateRequest is the provider-neutral request.
type GenerateRequest struct {
	Model     string           `json:"model"`
	Messages  []Message        `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	System    string           `json:"system,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
	// JSON asks the provider to answer with a single JSON value. Providers
	// without a native JSON mode fall back to an instruction.
	JSON bool `json:"json,omitempty"`
}

// StopReason says why the model stopped.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonToolUse   StopReason = "tool_use"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// Usage reports token counts.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// GenerateResponse is the provider-neutral reply.
type GenerateResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason StopReason     `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// Text joins the text blocks of the reply.
func (r GenerateResponse) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == ContentTypeText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// ToolUses returns the tool calls of the reply in order.
func (r GenerateResponse) ToolUses() []ToolUse {
	var out []ToolUse
	for _, c := range r.Content {
		if c.Type == ContentTypeToolUse && c.ToolUse != nil {
			out = append(out, *c.ToolUse)
		}
	}
	return out
}

// ParseModelID splits "provider:model-name". Both parts are required.
func ParseModelID(id string) (provider, modelName string, err error) {
	provider, modelName, ok := strings.Cut(id, ":")
	switch {
	case !ok:
		return "", "", fmt.Errorf("model ID %q: want provider:model-name", id)
	case provider == "":
		return "", "", fmt.Errorf("model ID %q: empty provider name", id)
	case modelName == "":
		return "", "", fmt.Errorf("model ID %q: empty model name", id)
	}
	return provider, modelName, nil
}
