package providers

import (
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"

	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

func TestBuildContents_SplitsLastMessage(t *testing.T) {
	msgs := []llm.Message{
		llm.TextMessage(llm.RoleSystem, "ignored"),
		llm.TextMessage(llm.RoleUser, "split cell 2"),
		{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: llm.ContentTypeToolUse, ToolUse: &llm.ToolUse{ID: "call-1", Name: "split_cell", Input: []byte(`{"index":2}`)}},
		}},
		{Role: llm.RoleUser, Content: []llm.ContentBlock{
			{Type: llm.ContentTypeToolResult, ToolResult: &llm.ToolResult{ToolUseID: "call-1", Content: "ok"}},
		}},
	}
	hist, last, err := buildContents(msgs)
	if err != nil {
		t.Fatalf("buildContents: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history = %d, want 2", len(hist))
	}
	fc, ok := hist[1].Parts[0].(genai.FunctionCall)
	if !ok || fc.Name != "split_cell" || fc.Args["index"] != float64(2) {
		t.Errorf("function call = %#v", hist[1].Parts[0])
	}
	fr, ok := last.Parts[0].(genai.FunctionResponse)
	if !ok || fr.Name != "split_cell" || fr.Response["result"] != "ok" {
		t.Errorf("function response = %#v", last.Parts[0])
	}
}

func TestBuildContents_BadToolInput(t *testing.T) {
	msgs := []llm.Message{{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
		{Type: llm.ContentTypeToolUse, ToolUse: &llm.ToolUse{Name: "x", Input: []byte("{")}},
	}}}
	if _, _, err := buildContents(msgs); err == nil {
		t.Fatal("expected error for malformed tool input")
	}
}

func TestGenaiSchema(t *testing.T) {
	s := genaiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"index": map[string]any{"type": "integer"},
			"role":  map[string]any{"type": "string", "enum": []any{"rule", "script"}},
			"names": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"index"},
	})
	if s.Type != genai.TypeObject || len(s.Required) != 1 {
		t.Fatalf("schema = %+v", s)
	}
	if s.Properties["index"].Type != genai.TypeInteger {
		t.Errorf("index type = %v", s.Properties["index"].Type)
	}
	if got := s.Properties["role"].Enum; len(got) != 2 {
		t.Errorf("enum = %v", got)
	}
	if s.Properties["names"].Items.Type != genai.TypeString {
		t.Errorf("items type = %v", s.Properties["names"].Items.Type)
	}
}

func TestConvertGeminiResponse_FunctionCallWins(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("calling"),
				genai.FunctionCall{Name: "undo", Args: map[string]any{}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 5, CandidatesTokenCount: 2},
	}
	got := convertGeminiResponse(resp)
	if got.StopReason != llm.StopReasonToolUse {
		t.Errorf("stop = %s, want tool_use", got.StopReason)
	}
	if got.Text() != "calling" || got.Usage.OutputTokens != 2 {
		t.Errorf("response = %+v", got)
	}
}

func TestMapGeminiError(t *testing.T) {
	var se *llm.ServerError
	if err := mapGeminiError(&googleapi.Error{Code: 503}); !errors.As(err, &se) {
		t.Errorf("503 mapped to %T", err)
	}
	var br *llm.BadRequestError
	if err := mapGeminiError(&googleapi.Error{Code: 400}); !errors.As(err, &br) {
		t.Errorf("400 mapped to %T", err)
	}
	if mapGeminiError(nil) != nil {
		t.Error("nil should map to nil")
	}
}

func TestSystemPrompt_JSONFallback(t *testing.T) {
	req := llm.GenerateRequest{System: "be brief", JSON: true}
	if got := systemPrompt(req, false); got != "be brief\n\n"+jsonInstruction {
		t.Errorf("fallback system = %q", got)
	}
	if got := systemPrompt(llm.GenerateRequest{JSON: true}, false); got != jsonInstruction {
		t.Errorf("empty system = %q", got)
	}
	if got := systemPrompt(req, true); got != "be brief" {
		t.Errorf("native system = %q", got)
	}
}
