package cellgraph

import (
	"context"
	"fmt"
	"sort"
)

// Usage is the variable usage of one code fragment as reported by an
// Analyzer.
type Usage struct {
	Reads     []string `json:"reads"`
	Writes    []string `json:"writes"`
	ReadsFile []string `json:"readsFile"`
}

// Analyzer infers variable usage for code fragments. The result is indexed
// like fragments; a short result leaves the remaining fragments empty.
type Analyzer interface {
	Analyze(ctx context.Context, fragments []string) ([]Usage, error)
}

// CellSummary is a detached copy of the state a collaborator needs to
// decide on a cell.
type CellSummary struct {
	Index               int            `json:"index"`
	Code                string         `json:"code"`
	Name                string         `json:"name"`
	Role                Role           `json:"role"`
	IsFunctionCell      bool           `json:"isFunctionCell"`
	Reads               []string       `json:"reads"`
	Writes              []string       `json:"writes"`
	ReadsFile           []string       `json:"readsFile"`
	Wildcards           []string       `json:"wildcards"`
	MissingDependencies []string       `json:"missingDependencies"`
	DependsOn           map[string]int `json:"dependsOn"`
	LegalRoles          LegalRoles     `json:"legalRoles"`
}

// Suggestion is a proposed role and name for one cell. Empty fields leave
// the cell unchanged.
type Suggestion struct {
	CellIndex int    `json:"cellIndex"`
	Name      string `json:"suggestedName"`
	Role      Role   `json:"suggestedRole"`
}

// Suggester proposes roles and names for cells at or after fromIndex.
type Suggester interface {
	Suggest(ctx context.Context, cells []CellSummary, fromIndex int) ([]Suggestion, error)
}

// GeneratedCode is the pipeline glue produced for a rule cell. It is stored
// verbatim.
type GeneratedCode struct {
	PrefixCode string `json:"prefixCode"`
	SuffixCode string `json:"suffixCode"`
	RuleText   string `json:"ruleText"`
}

// Generator produces pipeline glue for a rule cell.
type Generator interface {
	Generate(ctx context.Context, cell CellSummary) (GeneratedCode, error)
}

// Summary returns a detached summary of cell i.
func (g *Graph) Summary(i int) (CellSummary, error) {
	if err := g.checkIndex(i); err != nil {
		return CellSummary{}, err
	}
	return g.summary(i), nil
}

// Summaries returns detached summaries of every cell.
func (g *Graph) Summaries() []CellSummary {
	out := make([]CellSummary, len(g.cells))
	for i := range g.cells {
		out[i] = g.summary(i)
	}
	return out
}

func (g *Graph) summary(i int) CellSummary {
	c := g.cells[i]
	return CellSummary{
		Index:               i,
		Code:                c.Code,
		Name:                c.Role.Name,
		Role:                c.Role.Kind,
		IsFunctionCell:      c.IsFunctionCell,
		Reads:               c.Reads.Sorted(),
		Writes:              c.Writes.Sorted(),
		ReadsFile:           c.ReadsFile.Sorted(),
		Wildcards:           c.Wildcards.Sorted(),
		MissingDependencies: c.MissingDependencies.Sorted(),
		DependsOn:           cloneEdges(c.DependsOn),
		LegalRoles:          c.Role.CanBecome(),
	}
}

// SetRole assigns r to cell i. An illegal role is rejected with an
// *IllegalRoleTransitionError and nothing changes. Downstream cells are
// reconciled afterwards.
func (g *Graph) SetRole(i int, r Role) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	r, err := ParseRole(string(r))
	if err != nil {
		return err
	}
	g.updatePartition(i)
	if _, err := g.cells[i].Role.SetRole(i, r, false); err != nil {
		return err
	}
	g.refreshRoles()
	return nil
}

// SetName renames the rule of cell i.
func (g *Graph) SetName(i int, name string) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	g.cells[i].Role.Name = name
	return nil
}

// SetGeneratedCode stores collaborator output for cell i.
func (g *Graph) SetGeneratedCode(i int, code GeneratedCode) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	role := &g.cells[i].Role
	role.PrefixCode = code.PrefixCode
	role.SuffixCode = code.SuffixCode
	role.GeneratedRuleText = code.RuleText
	return nil
}

// ApplyGuessedRolesAndNames applies suggestions for cells at or after
// fromIndex. Roles are applied permissively: illegal or unknown roles are
// dropped. Names are always applied when present. A batch whose fromIndex
// is no longer inside the graph is stale and rejected with
// ErrStaleRefinement. It returns the number of cells changed.
func (g *Graph) ApplyGuessedRolesAndNames(suggestions []Suggestion, fromIndex int) (int, error) {
	if fromIndex < 0 {
		return 0, malformedf("negative fromIndex %d", fromIndex)
	}
	if fromIndex >= len(g.cells) {
		return 0, &InputError{Kind: ErrStaleRefinement, Msg: fmt.Sprintf("fromIndex %d, %d cells", fromIndex, len(g.cells))}
	}

	batch := make([]Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.CellIndex >= fromIndex && s.CellIndex < len(g.cells) {
			batch = append(batch, s)
		}
	}
	sort.SliceStable(batch, func(a, b int) bool { return batch[a].CellIndex < batch[b].CellIndex })

	changed := map[int]bool{}
	for _, s := range batch {
		c := g.cells[s.CellIndex]
		if s.Role != "" {
			if r, err := ParseRole(string(s.Role)); err == nil && r != c.Role.Kind {
				g.refreshRoles()
				if ok, _ := c.Role.SetRole(s.CellIndex, r, true); ok {
					changed[s.CellIndex] = true
				}
			}
		}
		if s.Name != "" && s.Name != c.Role.Name {
			c.Role.Name = s.Name
			changed[s.CellIndex] = true
		}
	}
	g.refreshRoles()
	return len(changed), nil
}
