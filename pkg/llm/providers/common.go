// Package providers registers the LLM backends used by cellgraph. Import it
// for side effects:
//
//	import _ "github.com/ravi-parthasarathy/cellgraph/pkg/llm/providers"
package providers

import (
	"context"
	"strings"

	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

const (
	defaultMaxTokens = 4096
	maxAttempts      = 4
)

// jsonInstruction is appended to the system prompt for backends without a
// native JSON response mode.
const jsonInstruction = "Answer with a single JSON value and nothing else. Do not wrap it in a code fence."

// completeWithRetry runs one provider call under llm.WithRetry.
func completeWithRetry(ctx context.Context, call func() (llm.GenerateResponse, error)) (llm.GenerateResponse, error) {
	var resp llm.GenerateResponse
	err := llm.WithRetry(ctx, maxAttempts, func() error {
		var err error
		resp, err = call()
		return err
	})
	return resp, err
}

func maxTokens(req llm.GenerateRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

func systemPrompt(req llm.GenerateRequest, nativeJSON bool) string {
	if !req.JSON || nativeJSON {
		return req.System
	}
	if req.System == "" {
		return jsonInstruction
	}
	return req.System + "\n\n" + jsonInstruction
}

func hasToolResults(blocks []llm.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type == llm.ContentTypeToolResult {
			return true
		}
	}
	return false
}

func concatText(blocks []llm.ContentBlock) string {
	var b strings.Builder
	for _, c := range blocks {
		if c.Type == llm.ContentTypeText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
