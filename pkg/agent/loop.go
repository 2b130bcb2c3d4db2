package agent

import (
	"context"
	"fmt"

	"github.com/ravi-parthasarathy/cellgraph/pkg/agent/tools"
	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

const (
	defaultModel     = "anthropic:claude-sonnet-4-6"
	defaultMaxTokens = 4096
	defaultMaxTurns  = 50
)

// DefaultSystem is the system prompt used when none is configured.
const DefaultSystem = `You restructure a notebook into a Snakemake workflow by editing its cell dependency graph.
Every cell is a rule, a script or undecided. Rule cells become workflow steps and exchange
variables through files; script cells are shared code every rule can import. A cell may only
take a role listed as legal for it, and cells after a rule that consume its outputs must stay rules.
Start with list_cells, inspect cells with show_cell, and use the editing tools to split, merge,
name and classify cells, resolve missing dependencies and turn configurable reads into wildcards.
Edits that would break a dependency are rejected; read the error and try something else.
When the graph is ready, reply with a short summary of what you changed and call no tools.`

// AgentResult holds the final output of an agent loop. Turns and ToolCalls
// are filled in even when Run fails.
type AgentResult struct {
	Output    string
	Session   *Session
	Turns     int
	ToolCalls int
}

// Loop runs an LLM + tool loop over a cell graph until the model stops
// using tools.
type Loop struct {
	client    llm.Client
	registry  *tools.Registry
	model     string
	maxTokens int
	maxTurns  int
	system    string
	eventCh   chan<- Event
}

// Option configures a Loop.
type Option func(*Loop)

// WithModel sets the model for the agent. An empty model keeps the default.
func WithModel(model string) Option {
	return func(a *Loop) {
		if model != "" {
			a.model = model
		}
	}
}

// WithSystem sets the system prompt.
func WithSystem(system string) Option {
	return func(a *Loop) { a.system = system }
}

// WithEvents provides a channel for event emission.
func WithEvents(ch chan<- Event) Option {
	return func(a *Loop) { a.eventCh = ch }
}

// WithMaxTokens sets the per-turn max token budget.
func WithMaxTokens(n int) Option {
	return func(a *Loop) { a.maxTokens = n }
}

// WithMaxTurns sets the maximum number of LLM turns before the loop aborts.
// A value <= 0 uses the default (50).
func WithMaxTurns(n int) Option {
	return func(a *Loop) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// NewLoop creates a Loop that calls the tools in registry.
func NewLoop(client llm.Client, registry *tools.Registry, opts ...Option) *Loop {
	a := &Loop{
		client:    client,
		registry:  registry,
		model:     defaultModel,
		system:    DefaultSystem,
		maxTokens: defaultMaxTokens,
		maxTurns:  defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the agent loop for the given instruction. It returns when the
// model produces a response with no tool_use blocks.
func (a *Loop) Run(ctx context.Context, instruction string) (AgentResult, error) {
	session := NewSession(a.system)
	detector := NewLoopDetector(defaultSteeringThreshold)
	toolDefs := a.registry.Definitions()

	session.Append(llm.TextMessage(llm.RoleUser, instruction))
	a.emit(Event{Type: EventTypeLLMTurn, Content: "starting agent loop"})

	res := AgentResult{Session: session}
	for turn := 1; ; turn++ {
		if turn > a.maxTurns {
			return res, &MaxTurnsError{Turns: a.maxTurns}
		}
		if session.Len() > defaultTruncationHeadTurns+defaultTruncationTailTurns+5 {
			session.Truncate(defaultTruncationHeadTurns, defaultTruncationTailTurns)
		}

		resp, err := a.client.Complete(ctx, llm.GenerateRequest{
			Model:     a.model,
			Messages:  session.Messages(),
			Tools:     toolDefs,
			System:    session.System(),
			MaxTokens: a.maxTokens,
		})
		if err != nil {
			a.emit(Event{Type: EventTypeError, Turn: turn, Content: err.Error(), IsError: true})
			return res, fmt.Errorf("agent loop: turn %d: %w", turn, err)
		}
		res.Turns = turn
		session.Append(llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
		a.emit(Event{Type: EventTypeLLMTurn, Turn: turn,
			Content: fmt.Sprintf("stop_reason=%s tokens=%d", resp.StopReason, resp.Usage.OutputTokens)})

		calls := resp.ToolUses()
		if len(calls) == 0 {
			res.Output = resp.Text()
			a.emit(Event{Type: EventTypeComplete, Turn: turn, Content: res.Output})
			return res, nil
		}

		results := make([]llm.ContentBlock, 0, len(calls))
		for _, tc := range calls {
			res.ToolCalls++
			results = append(results, a.call(ctx, turn, detector, tc))
		}
		session.Append(llm.Message{Role: llm.RoleUser, Content: results})
	}
}

// call runs one tool call and returns its tool_result block. Failures are
// reported to the model, never to the caller.
func (a *Loop) call(ctx context.Context, turn int, detector *LoopDetector, tc llm.ToolUse) llm.ContentBlock {
	a.emit(Event{Type: EventTypeToolCall, Turn: turn, ToolName: tc.Name, Content: string(tc.Input)})

	result := func(content string, isError bool) llm.ContentBlock {
		a.emit(Event{Type: EventTypeToolResult, Turn: turn, ToolName: tc.Name, Content: content, IsError: isError})
		return llm.ContentBlock{
			Type:       llm.ContentTypeToolResult,
			ToolResult: &llm.ToolResult{ToolUseID: tc.ID, Content: content, IsError: isError},
		}
	}

	if detector.Record(tc.Name, tc.Input) {
		steering := SteeringMessage()
		a.emit(Event{Type: EventTypeSteering, Turn: turn, Content: steering})
		return llm.ContentBlock{
			Type:       llm.ContentTypeToolResult,
			ToolResult: &llm.ToolResult{ToolUseID: tc.ID, Content: steering, IsError: true},
		}
	}
	tool, err := a.registry.Get(tc.Name)
	if err != nil {
		return result(err.Error(), true)
	}
	out, err := tool.Execute(ctx, tc.Input)
	if err != nil {
		return result(err.Error(), true)
	}
	return result(out, false)
}

func (a *Loop) emit(e Event) {
	if a.eventCh != nil {
		select {
		case a.eventCh <- e:
		default:
		}
	}
}
