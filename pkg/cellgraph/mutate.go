package cellgraph

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/ravi-parthasarathy/cellgraph/pkg/pysrc"
)

// DeleteCell removes cell i. If a later cell would lose the writer of a
// variable it reads, the graph is left untouched and a
// *BrokenDependencyError names the first such reader.
func (g *Graph) DeleteCell(i int) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	return g.atomically(func() error {
		before := make([]NameSet, len(g.cells))
		for k, c := range g.cells {
			before[k] = c.MissingDependencies.Clone()
		}

		g.cells = slices.Delete(g.cells, i, i+1)
		g.BuildDependencyGraph()

		for k, c := range g.cells {
			orig := k
			if k >= i {
				orig = k + 1
			}
			for _, v := range c.MissingDependencies.Sorted() {
				if !before[orig].Has(v) {
					return &BrokenDependencyError{Variable: v, Cell: orig, Source: i}
				}
			}
		}
		return nil
	})
}

// SplitCell replaces cell i with two cells holding codeA and codeB. Usage
// of both halves comes from analyzer; calls of the original cell follow the
// half that mentions them. A blank half makes the split a no-op.
func (g *Graph) SplitCell(ctx context.Context, i int, codeA, codeB string, analyzer Analyzer) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	if strings.TrimSpace(codeA) == "" || strings.TrimSpace(codeB) == "" {
		return nil
	}
	if analyzer == nil {
		return malformedf("split: no analyzer")
	}

	usages, err := analyzer.Analyze(ctx, []string{codeA, codeB})
	if err != nil {
		return &AnalysisError{Op: "split", Cause: err}
	}
	for _, u := range usages {
		if err := checkUsage(u); err != nil {
			return &AnalysisError{Op: "split", Cause: err}
		}
	}

	return g.atomically(func() error {
		orig := g.cells[i]
		halves := make([]*Cell, 2)
		for k, code := range []string{codeA, codeB} {
			half, err := newCell(code)
			if err != nil {
				return err
			}
			var u Usage
			if k < len(usages) {
				u = usages[k]
			}
			half.Reads = NewNameSet(u.Reads...)
			half.Writes = NewNameSet(u.Writes...)
			half.ReadsFile = NewNameSet(u.ReadsFile...)
			for call := range orig.Calls {
				if mentions(code, call) {
					half.Calls.Add(call)
				}
			}
			for v := range orig.ReplacedFunctionVariables {
				if mentions(code, ParameterName(v)) {
					half.ReplacedFunctionVariables.Add(v)
				}
			}
			half.Wildcards = orig.Wildcards.Intersect(half.Reads)
			if !half.IsFunctionCell {
				half.Role.Kind = orig.Role.Kind
			}
			half.Role.Name = orig.Role.Name
			halves[k] = half
		}
		if halves[1].Role.Name != "" {
			halves[1].Role.Name += "_2"
		}

		g.cells = slices.Replace(g.cells, i, i+1, halves...)
		g.BuildDependencyGraph()
		return nil
	})
}

// mentions reports whether name occurs in code as a whole word.
func mentions(code, name string) bool {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`).MatchString(code)
}

// MergeCells joins cells a and b into one cell at the lower index. Reads of
// the later cell that the earlier cell writes become internal.
//
// A function cell merges only with another function cell, so its
// declarations stay resolvable for callers. When the cells are not adjacent
// the later cell's code moves above the cells between them; the merge is
// refused if that would re-point any edge through those cells.
func (g *Graph) MergeCells(a, b int) error {
	if a > b {
		a, b = b, a
	}
	if err := g.checkIndex(a); err != nil {
		return err
	}
	if err := g.checkIndex(b); err != nil {
		return err
	}
	if a == b {
		return malformedf("merge: cell %d with itself", a)
	}
	if err := g.checkMerge(a, b); err != nil {
		return err
	}

	return g.atomically(func() error {
		first, second := g.cells[a], g.cells[b]
		merged := &Cell{
			Code:                      strings.TrimRight(first.Code, "\n") + "\n" + second.Code,
			IsFunctionCell:            first.IsFunctionCell && second.IsFunctionCell,
			Writes:                    first.Writes.Union(second.Writes),
			Reads:                     first.Reads.Union(second.Reads.Minus(first.Writes)),
			ReadsFile:                 first.ReadsFile.Union(second.ReadsFile),
			Imports:                   first.Imports.Union(second.Imports),
			Declares:                  first.Declares.Union(second.Declares),
			Calls:                     first.Calls.Union(second.Calls),
			ReplacedFunctionVariables: first.ReplacedFunctionVariables.Union(second.ReplacedFunctionVariables),
		}
		merged.Wildcards = first.Wildcards.Union(second.Wildcards).Intersect(merged.Reads)
		merged.normalize()
		merged.Role.Name = first.Role.Name
		if merged.IsFunctionCell {
			merged.Role.Kind = RoleScript
		}

		g.cells[a] = merged
		g.cells = slices.Delete(g.cells, b, b+1)
		g.BuildDependencyGraph()
		return nil
	})
}

func (g *Graph) checkMerge(a, b int) error {
	first, second := g.cells[a], g.cells[b]
	if first.IsFunctionCell != second.IsFunctionCell {
		fn, other := a, b
		if second.IsFunctionCell {
			fn, other = b, a
		}
		return malformedf("merge: cell %d is a function cell and cell %d is not", fn, other)
	}
	for k := a + 1; k < b; k++ {
		between := g.cells[k]
		for _, v := range second.Writes.Sorted() {
			if between.Writes.Has(v) || (between.Reads.Has(v) && !between.Wildcards.Has(v)) {
				return malformedf("merge: cell %d uses %q, which cell %d writes", k, v, b)
			}
		}
		for _, v := range second.Reads.Sorted() {
			if j, ok := second.DependsOn[v]; ok && j == k {
				return malformedf("merge: cell %d reads %q from cell %d", b, v, k)
			}
		}
		for call, j := range second.DependsOnFunction {
			if j == k {
				return malformedf("merge: cell %d calls %s declared in cell %d", b, call, k)
			}
		}
	}
	return nil
}

// SetDependencyAsWildcard turns name into an externally supplied value for
// cell i and, transitively, for every cell that consumed it from there.
func (g *Graph) SetDependencyAsWildcard(i int, name string) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	return g.atomically(func() error {
		if !g.promote(i, name, map[int]bool{}) {
			return unknownf("cell %d neither reads nor supplies %q", i, name)
		}
		g.BuildDependencyGraph()
		return nil
	})
}

func (g *Graph) promote(i int, name string, seen map[int]bool) bool {
	if seen[i] {
		return false
	}
	seen[i] = true

	c := g.cells[i]
	consumers := slices.Clone(c.WritesTo[name])
	touched := false
	if c.Reads.Has(name) {
		c.Wildcards.Add(name)
		delete(c.DependsOn, name)
		c.MissingDependencies.Remove(name)
		touched = true
	}
	for _, k := range consumers {
		if g.promote(k, name, seen) {
			touched = true
		}
	}
	return touched
}

// SetWildcardAsDependency makes name an ordinary dependency of cell i again.
// Only cell i changes.
func (g *Graph) SetWildcardAsDependency(i int, name string) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	c := g.cells[i]
	if !c.Wildcards.Has(name) {
		return unknownf("cell %d has no wildcard %q", i, name)
	}
	c.Wildcards.Remove(name)
	g.BuildDependencyGraph()
	return nil
}

// AddCellDependency adds name to the reads of cell i.
func (g *Graph) AddCellDependency(i int, name string) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	if !validName(name) {
		return malformedf("invalid name %q", name)
	}
	g.cells[i].Reads.Add(name)
	g.BuildDependencyGraph()
	return nil
}

// RemoveCellDependency drops name from the reads of cell i. On a function
// cell whose parameter replaced name, it undoes that replacement instead.
func (g *Graph) RemoveCellDependency(i int, name string) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	c := g.cells[i]
	if c.IsFunctionCell && c.ReplacedFunctionVariables.Has(name) {
		return g.RemoveFunctionDependency(i, name)
	}
	if !c.Reads.Has(name) {
		return unknownf("cell %d does not read %q", i, name)
	}
	c.Reads.Remove(name)
	c.Wildcards.Remove(name)
	g.BuildDependencyGraph()
	return nil
}

// AddCellWrite adds name to the writes of cell i.
func (g *Graph) AddCellWrite(i int, name string) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	if !validName(name) {
		return malformedf("invalid name %q", name)
	}
	g.cells[i].Writes.Add(name)
	g.BuildDependencyGraph()
	return nil
}

// RemoveCellWrite drops name from the writes of cell i. It fails with a
// *BrokenDependencyError while any cell consumes the value from cell i.
func (g *Graph) RemoveCellWrite(i int, name string) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	c := g.cells[i]
	if !c.Writes.Has(name) {
		return unknownf("cell %d does not write %q", i, name)
	}
	if consumers := c.WritesTo[name]; len(consumers) > 0 {
		return &BrokenDependencyError{Variable: name, Cell: consumers[0], Source: i}
	}
	c.Writes.Remove(name)
	g.BuildDependencyGraph()
	return nil
}

// HoistImports moves every top-level import statement into a new cell at
// index 0. Statements are deduplicated in order of first appearance, and
// cells left blank are dropped. Imported names a cell listed as writes are
// written by the new cell instead.
func (g *Graph) HoistImports() error {
	return g.atomically(func() error {
		var (
			statements []string
			seen       = map[string]bool{}
			written    = NameSet{}
			kept       = make([]*Cell, 0, len(g.cells)+1)
		)
		for _, c := range g.cells {
			spans, texts, err := pysrc.ImportStatements(c.Code)
			if err != nil {
				return err
			}
			if len(spans) == 0 {
				kept = append(kept, c)
				continue
			}
			for _, text := range texts {
				if !seen[text] {
					seen[text] = true
					statements = append(statements, text)
				}
			}
			c.Code = pysrc.RemoveSpans(c.Code, spans)
			sym, err := pysrc.Scan(c.Code)
			if err != nil {
				return err
			}
			remaining := NewNameSet(sym.Imports...)
			for name := range c.Imports.Minus(remaining) {
				if c.Writes.Has(name) {
					written.Add(name)
					c.Writes.Remove(name)
				}
			}
			c.Imports = remaining
			if strings.TrimSpace(c.Code) != "" {
				kept = append(kept, c)
			}
		}
		if len(statements) == 0 {
			return nil
		}

		header, err := newCell(strings.Join(statements, "\n"))
		if err != nil {
			return err
		}
		header.Writes = written
		header.Role.Kind = RoleScript
		header.Role.Name = "imports"

		g.cells = append([]*Cell{header}, kept...)
		g.BuildDependencyGraph()
		return nil
	})
}
