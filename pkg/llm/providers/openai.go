package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

func init() {
	llm.RegisterProvider("openai", func(modelName string) (llm.Client, error) {
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("openai: OPENAI_API_KEY environment variable not set")
		}
		return &openaiClient{sdk: openai.NewClient(key), modelName: modelName}, nil
	})
}

type openaiClient struct {
	sdk       *openai.Client
	modelName string
}

func (c *openaiClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	params := openaiRequest(c.modelName, req)
	return completeWithRetry(ctx, func() (llm.GenerateResponse, error) {
		resp, err := c.sdk.CreateChatCompletion(ctx, params)
		if err != nil {
			return llm.GenerateResponse{}, mapOpenAIError(err)
		}
		return fromOpenAI(resp), nil
	})
}

func openaiRequest(modelName string, req llm.GenerateRequest) openai.ChatCompletionRequest {
	params := openai.ChatCompletionRequest{
		Model:     modelName,
		MaxTokens: maxTokens(req),
		Messages:  buildMessages(req.Messages, systemPrompt(req, true)),
	}
	if req.JSON {
		params.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}
	return params
}

// buildMessages flattens messages into chat completion turns. A user message
// carries either text or tool results; each tool result becomes its own
// "tool" turn.
func buildMessages(msgs []llm.Message, system string) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleUser:
			if !hasToolResults(m.Content) {
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: concatText(m.Content)})
				continue
			}
			for _, b := range m.Content {
				if b.ToolResult != nil {
					out = append(out, openai.ChatCompletionMessage{
						Role:       openai.ChatMessageRoleTool,
						Content:    b.ToolResult.Content,
						ToolCallID: b.ToolResult.ToolUseID,
					})
				}
			}
		case llm.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: concatText(m.Content)}
			for _, b := range m.Content {
				if b.Type == llm.ContentTypeToolUse && b.ToolUse != nil {
					msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
						ID:   b.ToolUse.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      b.ToolUse.Name,
							Arguments: string(b.ToolUse.Input),
						},
					})
				}
			}
			out = append(out, msg)
		}
	}
	return out
}

func buildTools(defs []llm.ToolDefinition) []openai.Tool {
	tools := make([]openai.Tool, 0, len(defs))
	for _, d := range defs {
		fn := &openai.FunctionDefinition{Name: d.Name, Description: d.Description}
		if len(d.InputSchema) > 0 {
			fn.Parameters = json.RawMessage(d.InputSchema)
		}
		tools = append(tools, openai.Tool{Type: openai.ToolTypeFunction, Function: fn})
	}
	return tools
}

func fromOpenAI(resp openai.ChatCompletionResponse) llm.GenerateResponse {
	out := llm.GenerateResponse{
		StopReason: llm.StopReasonEndTurn,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	if choice.Message.Content != "" {
		out.Content = append(out.Content, llm.ContentBlock{Type: llm.ContentTypeText, Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		out.Content = append(out.Content, llm.ContentBlock{
			Type:    llm.ContentTypeToolUse,
			ToolUse: &llm.ToolUse{ID: tc.ID, Name: tc.Function.Name, Input: []byte(tc.Function.Arguments)},
		})
	}
	switch choice.FinishReason {
	case openai.FinishReasonToolCalls:
		out.StopReason = llm.StopReasonToolUse
	case openai.FinishReasonLength:
		out.StopReason = llm.StopReasonMaxTokens
	}
	return out
}

func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return llm.FromStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	return fmt.Errorf("openai: %w", err)
}
