package llm_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

func TestParseModelID(t *testing.T) {
	tests := []struct {
		input        string
		wantProvider string
		wantModel    string
		wantErr      bool
	}{
		{"anthropic:claude-sonnet-4-6", "anthropic", "claude-sonnet-4-6", false},
		{"openai:gpt-4o", "openai", "gpt-4o", false},
		{"invalid", "", "", true},
		{":", "", "", true},
		{":model", "", "", true},
		{"provider:", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			prov, model, err := llm.ParseModelID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseModelID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if prov != tt.wantProvider || model != tt.wantModel {
				t.Errorf("got %q/%q, want %q/%q", prov, model, tt.wantProvider, tt.wantModel)
			}
		})
	}
}

type echoClient struct{ model string }

func (e echoClient) Complete(_ context.Context, req llm.GenerateRequest) (llm.GenerateResponse, error) {
	return llm.GenerateResponse{Content: []llm.ContentBlock{{Type: llm.ContentTypeText, Text: e.model}}}, nil
}

func TestNewClient_Registry(t *testing.T) {
	llm.RegisterProvider("echo", func(model string) (llm.Client, error) { return echoClient{model}, nil })

	c, err := llm.NewClient("echo:m1")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, _ := c.Complete(context.Background(), llm.GenerateRequest{})
	if resp.Text() != "m1" {
		t.Errorf("text = %q, want m1", resp.Text())
	}

	_, err = llm.NewClient("unknown_provider:some-model")
	if err == nil || !strings.Contains(err.Error(), "echo") {
		t.Fatalf("unknown provider err = %v, want list of providers", err)
	}
}

func TestFromStatus(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		code      int
		retryable bool
		check     func(error) bool
	}{
		{429, true, func(e error) bool { var x *llm.RateLimitError; return errors.As(e, &x) }},
		{529, true, func(e error) bool { var x *llm.ServerError; return errors.As(e, &x) }},
		{401, false, func(e error) bool { var x *llm.AuthError; return errors.As(e, &x) }},
		{400, false, func(e error) bool { var x *llm.BadRequestError; return errors.As(e, &x) }},
		{404, false, func(e error) bool { var x *llm.LLMError; return errors.As(e, &x) }},
	}
	for _, tt := range tests {
		err := llm.FromStatus(tt.code, "msg", cause)
		if !tt.check(err) {
			t.Errorf("FromStatus(%d) = %T", tt.code, err)
		}
		if llm.Retryable(err) != tt.retryable {
			t.Errorf("Retryable(%d) = %v, want %v", tt.code, !tt.retryable, tt.retryable)
		}
		if !errors.Is(err, cause) {
			t.Errorf("FromStatus(%d) lost its cause", tt.code)
		}
	}
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := llm.FromStatus(401, "no key", nil)
	err := llm.WithRetry(context.Background(), 4, func() error { calls++; return perm })
	if calls != 1 || !errors.Is(err, perm) {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestWithRetry_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := llm.WithRetry(ctx, 3, func() error { return llm.FromStatus(503, "busy", nil) })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
