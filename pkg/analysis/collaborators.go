package analysis

import (
	"context"
	"fmt"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

type analyzeRequest struct {
	Fragments []string `json:"fragments"`
}

type analyzeReply struct {
	Fragments []cellgraph.Usage `json:"fragments"`
}

// Analyze asks the model for the variable usage of each fragment. A reply
// with fewer entries than fragments is accepted; one with more is not.
func (s *Service) Analyze(ctx context.Context, fragments []string) ([]cellgraph.Usage, error) {
	if len(fragments) == 0 {
		return nil, nil
	}
	var reply analyzeReply
	if err := s.ask(ctx, "analyze", analyzeSystem, analyzeRequest{Fragments: fragments}, &reply); err != nil {
		return nil, err
	}
	if len(reply.Fragments) > len(fragments) {
		return nil, &ResponseError{Op: "analyze", Reason: fmt.Sprintf("%d usages for %d fragments", len(reply.Fragments), len(fragments))}
	}
	return reply.Fragments, nil
}

type suggestRequest struct {
	FromIndex int                     `json:"fromIndex"`
	Cells     []cellgraph.CellSummary `json:"cells"`
}

type suggestReply struct {
	Suggestions []cellgraph.Suggestion `json:"suggestions"`
}

// Suggest asks the model for roles and names. Entries outside
// [fromIndex, len(cells)) are dropped; role legality is left to the graph.
func (s *Service) Suggest(ctx context.Context, cells []cellgraph.CellSummary, fromIndex int) ([]cellgraph.Suggestion, error) {
	if fromIndex >= len(cells) {
		return nil, nil
	}
	var reply suggestReply
	if err := s.ask(ctx, "suggest", suggestSystem, suggestRequest{FromIndex: fromIndex, Cells: cells}, &reply); err != nil {
		return nil, err
	}
	out := reply.Suggestions[:0]
	for _, sg := range reply.Suggestions {
		if sg.CellIndex >= fromIndex && sg.CellIndex < len(cells) {
			out = append(out, sg)
		}
	}
	return out, nil
}

// Generate asks the model for the Snakemake glue of a rule cell.
func (s *Service) Generate(ctx context.Context, cell cellgraph.CellSummary) (cellgraph.GeneratedCode, error) {
	if cell.Role != cellgraph.RoleRule {
		return cellgraph.GeneratedCode{}, fmt.Errorf("generate: cell %d is %s, not a rule", cell.Index, cell.Role)
	}
	var code cellgraph.GeneratedCode
	if err := s.ask(ctx, "generate", generateSystem, cell, &code); err != nil {
		return cellgraph.GeneratedCode{}, err
	}
	if code.RuleText == "" {
		return cellgraph.GeneratedCode{}, &ResponseError{Op: "generate", Reason: "empty ruleText"}
	}
	return code, nil
}
