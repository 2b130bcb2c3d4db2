package providers

import (
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

// ─── Request building ─────────────────────────────────────────────────────────

func TestOpenAIRequest_JSONMode(t *testing.T) {
	req := llm.GenerateRequest{
		System:   "classify cells",
		Messages: []llm.Message{llm.TextMessage(llm.RoleUser, "cells: []")},
		JSON:     true,
	}
	params := openaiRequest("gpt-4o", req)
	if params.ResponseFormat == nil || params.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatalf("response format = %+v, want json_object", params.ResponseFormat)
	}
	if params.MaxTokens != defaultMaxTokens {
		t.Errorf("max tokens = %d, want %d", params.MaxTokens, defaultMaxTokens)
	}
	if got := params.Messages[0].Content; got != "classify cells" {
		t.Errorf("system = %q, native JSON mode should leave it untouched", got)
	}
}

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	msgs := []llm.Message{
		llm.TextMessage(llm.RoleUser, "show cell 0"),
		{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: llm.ContentTypeText, Text: "looking"},
			{Type: llm.ContentTypeToolUse, ToolUse: &llm.ToolUse{ID: "c1", Name: "show_cell", Input: []byte(`{"index":0}`)}},
		}},
		{Role: llm.RoleUser, Content: []llm.ContentBlock{
			{Type: llm.ContentTypeToolResult, ToolResult: &llm.ToolResult{ToolUseID: "c1", Content: "y = 1"}},
		}},
	}
	out := buildMessages(msgs, "")
	if len(out) != 3 {
		t.Fatalf("want 3 messages, got %d", len(out))
	}
	asst := out[1]
	if asst.Content != "looking" || len(asst.ToolCalls) != 1 || asst.ToolCalls[0].Function.Arguments != `{"index":0}` {
		t.Errorf("assistant = %+v", asst)
	}
	if out[2].Role != openai.ChatMessageRoleTool || out[2].ToolCallID != "c1" || out[2].Content != "y = 1" {
		t.Errorf("tool turn = %+v", out[2])
	}
}

// ─── Response conversion ──────────────────────────────────────────────────────

func TestFromOpenAI(t *testing.T) {
	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Content: `{"ok":true}`,
				ToolCalls: []openai.ToolCall{{
					ID: "c9", Function: openai.FunctionCall{Name: "undo", Arguments: "{}"},
				}},
			},
			FinishReason: openai.FinishReasonToolCalls,
		}},
		Usage: openai.Usage{PromptTokens: 7, CompletionTokens: 3},
	}
	got := fromOpenAI(resp)
	if got.Text() != `{"ok":true}` {
		t.Errorf("text = %q", got.Text())
	}
	if uses := got.ToolUses(); len(uses) != 1 || uses[0].Name != "undo" {
		t.Errorf("tool uses = %+v", uses)
	}
	if got.StopReason != llm.StopReasonToolUse || got.Usage.InputTokens != 7 {
		t.Errorf("stop=%s usage=%+v", got.StopReason, got.Usage)
	}
	if empty := fromOpenAI(openai.ChatCompletionResponse{}); empty.StopReason != llm.StopReasonEndTurn || len(empty.Content) != 0 {
		t.Errorf("empty response = %+v", empty)
	}
}

// ─── Error mapping ────────────────────────────────────────────────────────────

func TestMapOpenAIError(t *testing.T) {
	if mapOpenAIError(nil) != nil {
		t.Fatal("nil should map to nil")
	}
	var rl *llm.RateLimitError
	if err := mapOpenAIError(&openai.APIError{HTTPStatusCode: 429}); !errors.As(err, &rl) {
		t.Errorf("429 mapped to %T", err)
	}
	var auth *llm.AuthError
	if err := mapOpenAIError(&openai.APIError{HTTPStatusCode: 401}); !errors.As(err, &auth) {
		t.Errorf("401 mapped to %T", err)
	}
	plain := errors.New("dial tcp: refused")
	if err := mapOpenAIError(plain); !errors.Is(err, plain) || llm.Retryable(err) {
		t.Errorf("transport error = %v", err)
	}
}
