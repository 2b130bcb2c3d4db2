package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

func init() {
	llm.RegisterProvider("anthropic", func(modelName string) (llm.Client, error) {
		// The SDK reads ANTHROPIC_API_KEY when the option is empty.
		return &anthropicClient{sdk: anthropicsdk.NewClient(option.WithAPIKey("")), modelName: modelName}, nil
	})
}

type anthropicClient struct {
	sdk       anthropicsdk.Client
	modelName string
}

func (a *anthropicClient) Complete(ctx context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	params := anthropicParams(a.modelName, req)
	return completeWithRetry(ctx, func() (llm.GenerateResponse, error) {
		msg, err := a.sdk.Messages.New(ctx, params)
		if err != nil {
			return llm.GenerateResponse{}, mapAnthropicError(err)
		}
		return fromAnthropic(msg), nil
	})
}

func anthropicParams(modelName string, req llm.GenerateRequest) anthropicsdk.MessageNewParams {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(modelName),
		MaxTokens: int64(maxTokens(req)),
		Messages:  anthropicMessages(req.Messages),
	}
	if sys := systemPrompt(req, false); sys != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: sys}}
	}
	for _, t := range req.Tools {
		tp := anthropicsdk.ToolParam{
			Name:        t.Name,
			InputSchema: anthropicSchema(t.InputSchema),
			Description: param.NewOpt(t.Description),
		}
		params.Tools = append(params.Tools, anthropicsdk.ToolUnionParam{OfTool: &tp})
	}
	return params
}

func anthropicMessages(in []llm.Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, 0, len(in))
	for _, m := range in {
		var blocks []anthropicsdk.ContentBlockParamUnion
		for _, b := range m.Content {
			switch {
			case b.Type == llm.ContentTypeText:
				blocks = append(blocks, anthropicsdk.NewTextBlock(b.Text))
			case b.Type == llm.ContentTypeToolResult && b.ToolResult != nil:
				r := b.ToolResult
				blocks = append(blocks, anthropicsdk.NewToolResultBlock(r.ToolUseID, r.Content, r.IsError))
			case b.Type == llm.ContentTypeToolUse && b.ToolUse != nil:
				var input any
				_ = json.Unmarshal(b.ToolUse.Input, &input)
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(b.ToolUse.ID, input, b.ToolUse.Name))
			}
		}
		switch m.Role {
		case llm.RoleUser:
			out = append(out, anthropicsdk.NewUserMessage(blocks...))
		case llm.RoleAssistant:
			out = append(out, anthropicsdk.NewAssistantMessage(blocks...))
		}
	}
	return out
}

func anthropicSchema(raw []byte) anthropicsdk.ToolInputSchemaParam {
	var schema anthropicsdk.ToolInputSchemaParam
	var m struct {
		Properties any      `json:"properties"`
		Required   []string `json:"required"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return schema
	}
	schema.Properties = m.Properties
	schema.Required = m.Required
	return schema
}

func fromAnthropic(msg *anthropicsdk.Message) llm.GenerateResponse {
	resp := llm.GenerateResponse{
		StopReason: llm.StopReasonEndTurn,
		Usage: llm.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, b := range msg.Content {
		switch b.Type {
		case "text":
			resp.Content = append(resp.Content, llm.ContentBlock{Type: llm.ContentTypeText, Text: b.Text})
		case "tool_use":
			raw, _ := json.Marshal(b.Input)
			resp.Content = append(resp.Content, llm.ContentBlock{
				Type:    llm.ContentTypeToolUse,
				ToolUse: &llm.ToolUse{ID: b.ID, Name: b.Name, Input: raw},
			})
		}
	}
	switch msg.StopReason {
	case anthropicsdk.StopReasonToolUse:
		resp.StopReason = llm.StopReasonToolUse
	case anthropicsdk.StopReasonMaxTokens:
		resp.StopReason = llm.StopReasonMaxTokens
	}
	return resp
}

func mapAnthropicError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		return llm.FromStatus(apiErr.StatusCode, apiErr.Error(), err)
	}
	return fmt.Errorf("anthropic: %w", err)
}
