package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

func init() {
	llm.RegisterProvider("gemini", func(modelName string) (llm.Client, error) {
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("gemini: GEMINI_API_KEY environment variable not set")
		}
		sdk, err := genai.NewClient(context.Background(), option.WithAPIKey(key))
		if err != nil {
			return nil, fmt.Errorf("gemini: create client: %w", err)
		}
		return &geminiClient{sdk: sdk, modelName: modelName}, nil
	})
}

type geminiClient struct {
	sdk       *genai.Client
	modelName string
}

func (c *geminiClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	model := c.model(req)
	history, last, err := buildContents(req.Messages)
	if err != nil {
		return llm.GenerateResponse{}, fmt.Errorf("gemini: build contents: %w", err)
	}
	if last == nil {
		return llm.GenerateResponse{}, fmt.Errorf("gemini: no user message to send")
	}
	return completeWithRetry(ctx, func() (llm.GenerateResponse, error) {
		cs := model.StartChat()
		cs.History = history
		resp, err := cs.SendMessage(ctx, last.Parts...)
		if err != nil {
			return llm.GenerateResponse{}, mapGeminiError(err)
		}
		return convertGeminiResponse(resp), nil
	})
}

func (c *geminiClient) model(req llm.GenerateRequest) *genai.GenerativeModel {
	model := c.sdk.GenerativeModel(c.modelName)
	n := int32(maxTokens(req))
	model.MaxOutputTokens = &n
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		model.Tools = buildGeminiTools(req.Tools)
	}
	return model
}

// buildContents converts messages to Gemini contents. The final content is
// returned separately for SendMessage; the rest is chat history.
func buildContents(msgs []llm.Message) (history []*genai.Content, last *genai.Content, err error) {
	var contents []*genai.Content
	for _, m := range msgs {
		var c *genai.Content
		switch m.Role {
		case llm.RoleUser:
			c = userContent(m, msgs)
		case llm.RoleAssistant:
			if c, err = assistantContent(m); err != nil {
				return nil, nil, err
			}
		}
		if c != nil {
			contents = append(contents, c)
		}
	}
	if len(contents) == 0 {
		return nil, nil, nil
	}
	return contents[:len(contents)-1], contents[len(contents)-1], nil
}

func userContent(m llm.Message, all []llm.Message) *genai.Content {
	if !hasToolResults(m.Content) {
		return &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(concatText(m.Content))}}
	}
	var parts []genai.Part
	for _, b := range m.Content {
		if b.ToolResult == nil {
			continue
		}
		// FunctionResponse is keyed by function name, not call ID.
		name, ok := toolNameFor(b.ToolResult.ToolUseID, all)
		if !ok {
			name = b.ToolResult.ToolUseID
		}
		parts = append(parts, genai.FunctionResponse{
			Name:     name,
			Response: map[string]any{"result": b.ToolResult.Content},
		})
	}
	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Role: "user", Parts: parts}
}

func assistantContent(m llm.Message) (*genai.Content, error) {
	var parts []genai.Part
	for _, b := range m.Content {
		switch {
		case b.Type == llm.ContentTypeText && b.Text != "":
			parts = append(parts, genai.Text(b.Text))
		case b.Type == llm.ContentTypeToolUse && b.ToolUse != nil:
			var args map[string]any
			if len(b.ToolUse.Input) > 0 {
				if err := json.Unmarshal(b.ToolUse.Input, &args); err != nil {
					return nil, fmt.Errorf("tool_use %q: unmarshal input: %w", b.ToolUse.Name, err)
				}
			}
			parts = append(parts, genai.FunctionCall{Name: b.ToolUse.Name, Args: args})
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return &genai.Content{Role: "model", Parts: parts}, nil
}

func toolNameFor(id string, msgs []llm.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		for _, b := range msgs[i].Content {
			if b.ToolUse != nil && b.ToolUse.ID == id {
				return b.ToolUse.Name, true
			}
		}
	}
	return "", false
}

func buildGeminiTools(defs []llm.ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		fd := &genai.FunctionDeclaration{Name: d.Name, Description: d.Description}
		var m map[string]any
		if len(d.InputSchema) > 0 && json.Unmarshal(d.InputSchema, &m) == nil {
			fd.Parameters = genaiSchema(m)
		}
		decls = append(decls, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

var genaiTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"string":  genai.TypeString,
	"integer": genai.TypeInteger,
	"number":  genai.TypeNumber,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

// genaiSchema converts a decoded JSON Schema object.
func genaiSchema(m map[string]any) *genai.Schema {
	if m == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		s.Type = genaiTypes[t]
	}
	s.Description, _ = m["description"].(string)
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for k, v := range props {
			if vm, ok := v.(map[string]any); ok {
				s.Properties[k] = genaiSchema(vm)
			}
		}
	}
	s.Required = stringList(m["required"])
	s.Enum = stringList(m["enum"])
	if items, ok := m["items"].(map[string]any); ok {
		s.Items = genaiSchema(items)
	}
	return s
}

func stringList(v any) []string {
	list, _ := v.([]any)
	var out []string
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func convertGeminiResponse(resp *genai.GenerateContentResponse) llm.GenerateResponse {
	out := llm.GenerateResponse{StopReason: llm.StopReasonEndTurn}
	if resp.UsageMetadata != nil {
		out.Usage = llm.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return out
	}
	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				if v != "" {
					out.Content = append(out.Content, llm.ContentBlock{Type: llm.ContentTypeText, Text: string(v)})
				}
			case genai.FunctionCall:
				args, _ := json.Marshal(v.Args)
				// Gemini has no call IDs; the name stands in.
				out.Content = append(out.Content, llm.ContentBlock{
					Type:    llm.ContentTypeToolUse,
					ToolUse: &llm.ToolUse{ID: v.Name, Name: v.Name, Input: args},
				})
			}
		}
	}
	// Gemini reports FinishReasonStop even when it asked for a function call.
	switch {
	case len(out.ToolUses()) > 0:
		out.StopReason = llm.StopReasonToolUse
	case cand.FinishReason == genai.FinishReasonMaxTokens:
		out.StopReason = llm.StopReasonMaxTokens
	}
	return out
}

func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return llm.FromStatus(apiErr.Code, apiErr.Message, err)
	}
	return fmt.Errorf("gemini: %w", err)
}
