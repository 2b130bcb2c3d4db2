package cellgraph

import (
	"slices"
	"strings"
	"unicode"

	"github.com/ravi-parthasarathy/cellgraph/pkg/pysrc"
)

// Cell is one code unit of the notebook. Its position in the graph is its
// identity; every edge below is an index into the same graph.
type Cell struct {
	Code           string  `json:"code"`
	IsFunctionCell bool    `json:"isFunctionCell"`
	Reads          NameSet `json:"reads"`
	ReadsFile      NameSet `json:"readsFile"`
	Writes         NameSet `json:"writes"`
	Imports        NameSet `json:"imports"`
	Declares       NameSet `json:"declares"`
	Calls          NameSet `json:"calls"`

	MissingDependencies NameSet          `json:"missingDependencies"`
	DependsOn           map[string]int   `json:"dependsOn"`
	DependsOnFunction   map[string]int   `json:"dependsOnFunction"`
	WritesTo            map[string][]int `json:"writesTo"`

	Role RuleNode `json:"role"`

	ReplacedFunctionVariables NameSet `json:"replacedFunctionVariables"`
	Wildcards                 NameSet `json:"wildcards"`
}

// newCell builds a cell from code, filling imports, declares and calls from
// a syntax scan. Function-only code becomes a script function cell.
func newCell(code string) (*Cell, error) {
	sym, err := pysrc.Scan(code)
	if err != nil {
		return nil, err
	}
	fnOnly, err := pysrc.IsFunctionOnly(code)
	if err != nil {
		return nil, err
	}
	c := &Cell{Code: code, IsFunctionCell: fnOnly}
	c.normalize()
	c.Imports.Add(sym.Imports...)
	c.Declares.Add(sym.Declares...)
	c.Calls.Add(sym.Calls...)
	c.Role.Kind = RoleUndecided
	if fnOnly {
		c.Role.Kind = RoleScript
	}
	c.Role.functionCell = fnOnly
	return c, nil
}

// normalize replaces nil sets and maps with empty ones.
func (c *Cell) normalize() {
	for _, s := range []*NameSet{
		&c.Reads, &c.ReadsFile, &c.Writes, &c.Imports, &c.Declares, &c.Calls,
		&c.MissingDependencies, &c.ReplacedFunctionVariables, &c.Wildcards,
	} {
		if *s == nil {
			*s = NameSet{}
		}
	}
	if c.DependsOn == nil {
		c.DependsOn = map[string]int{}
	}
	if c.DependsOnFunction == nil {
		c.DependsOnFunction = map[string]int{}
	}
	if c.WritesTo == nil {
		c.WritesTo = map[string][]int{}
	}
	if c.Role.Kind == "" {
		c.Role.Kind = RoleUndecided
	}
}

// resetEdges clears everything BuildDependencyGraph derives.
func (c *Cell) resetEdges() {
	c.MissingDependencies = NameSet{}
	c.DependsOn = map[string]int{}
	c.DependsOnFunction = map[string]int{}
	c.WritesTo = map[string][]int{}
}

// Clone returns a deep copy of c.
func (c *Cell) Clone() Cell {
	out := Cell{
		Code:                      c.Code,
		IsFunctionCell:            c.IsFunctionCell,
		Reads:                     c.Reads.Clone(),
		ReadsFile:                 c.ReadsFile.Clone(),
		Writes:                    c.Writes.Clone(),
		Imports:                   c.Imports.Clone(),
		Declares:                  c.Declares.Clone(),
		Calls:                     c.Calls.Clone(),
		MissingDependencies:       c.MissingDependencies.Clone(),
		DependsOn:                 cloneEdges(c.DependsOn),
		DependsOnFunction:         cloneEdges(c.DependsOnFunction),
		WritesTo:                  make(map[string][]int, len(c.WritesTo)),
		Role:                      c.Role.clone(),
		ReplacedFunctionVariables: c.ReplacedFunctionVariables.Clone(),
		Wildcards:                 c.Wildcards.Clone(),
	}
	for v, consumers := range c.WritesTo {
		out.WritesTo[v] = slices.Clone(consumers)
	}
	return out
}

func cloneEdges(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// validName reports whether s can be a variable name: non-empty and free of
// whitespace.
func validName(s string) bool {
	return s != "" && !strings.ContainsFunc(s, unicode.IsSpace)
}

func checkNames(field string, names []string) error {
	for _, n := range names {
		if !validName(n) {
			return malformedf("%s: invalid name %q", field, n)
		}
	}
	return nil
}
