package cellgraph

import (
	"fmt"
	"strings"

	"github.com/ravi-parthasarathy/cellgraph/pkg/pysrc"
)

// ParameterName is the reserved parameter that replaces a global variable v
// inside an independent function cell.
func ParameterName(v string) string { return v + "__param" }

// HoistFunctionDeclarations moves the top-level functions of every ordinary
// cell into a new function cell inserted just before it. The function cell
// reads what the functions reference of the original cell's reads and
// writes; the original cell keeps the reads it still mentions. Cells left
// blank are dropped.
func (g *Graph) HoistFunctionDeclarations() error {
	return g.atomically(func() error {
		out := make([]*Cell, 0, len(g.cells))
		hoisted := NameSet{}
		for _, c := range g.cells {
			if c.IsFunctionCell {
				out = append(out, c)
				continue
			}
			fns, err := pysrc.TopLevelFunctions(c.Code)
			if err != nil {
				return err
			}
			if len(fns) == 0 {
				out = append(out, c)
				continue
			}

			fc, rest, err := splitFunctions(c, fns)
			if err != nil {
				return err
			}
			hoisted = hoisted.Union(fc.Declares)
			out = append(out, fc)
			if rest != nil {
				out = append(out, rest)
			}
		}

		for _, c := range out {
			if c.IsFunctionCell {
				continue
			}
			for name := range hoisted {
				if c.Reads.Has(name) {
					c.Reads.Remove(name)
					c.Wildcards.Remove(name)
					c.Calls.Add(name)
				}
			}
		}

		g.cells = out
		g.BuildDependencyGraph()
		return nil
	})
}

// splitFunctions carves fns out of c. It returns the new function cell and
// what is left of c, or nil when nothing but whitespace remains.
func splitFunctions(c *Cell, fns []pysrc.Function) (*Cell, *Cell, error) {
	var (
		texts  []string
		spans  []pysrc.Span
		params = NameSet{}
	)
	for _, fn := range fns {
		texts = append(texts, fn.Text)
		spans = append(spans, fn.Span)
		params.Add(fn.Params...)
	}

	fc, err := newCell(strings.Join(texts, "\n\n\n"))
	if err != nil {
		return nil, nil, err
	}
	fc.IsFunctionCell = true
	fc.Role.Kind = RoleScript
	ids, err := pysrc.Identifiers(fc.Code)
	if err != nil {
		return nil, nil, err
	}
	fc.Reads = c.Reads.Union(c.Writes).Intersect(NewNameSet(ids...)).Minus(params).Minus(fc.Declares)
	fc.Wildcards = c.Wildcards.Intersect(fc.Reads)

	rest := pysrc.RemoveSpans(c.Code, spans)
	if strings.TrimSpace(rest) == "" {
		return fc, nil, nil
	}
	sym, err := pysrc.Scan(rest)
	if err != nil {
		return nil, nil, err
	}
	ids, err = pysrc.Identifiers(rest)
	if err != nil {
		return nil, nil, err
	}
	c.Code = rest
	c.Reads = c.Reads.Intersect(NewNameSet(ids...))
	c.Writes = c.Writes.Minus(fc.Declares)
	c.Wildcards = c.Wildcards.Intersect(c.Reads)
	c.Declares = NewNameSet(sym.Declares...)
	c.Calls = NewNameSet(sym.Calls...)
	c.Imports = NewNameSet(sym.Imports...)
	return fc, c, nil
}

// MakeFunctionIndependent rewrites function cell i so it reads no globals.
// Each read becomes a reserved parameter on every function of the cell, and
// every later call site bound to the cell passes the variable explicitly.
// When nothing needs replacing only the call edges are refreshed.
func (g *Graph) MakeFunctionIndependent(i int) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	c := g.cells[i]
	if !c.IsFunctionCell {
		return &InputError{Kind: ErrNotFunctionCell, Msg: fmt.Sprintf("cell %d", i)}
	}

	return g.atomically(func() error {
		fns, err := pysrc.TopLevelFunctions(c.Code)
		if err != nil {
			return err
		}
		params := NameSet{}
		for _, fn := range fns {
			params.Add(fn.Params...)
		}
		replace := c.Reads.Minus(params).Sorted()
		if len(replace) == 0 {
			g.BuildDependencyGraph()
			return nil
		}

		code := c.Code
		for _, v := range replace {
			if code, err = pysrc.RenameIdentifier(code, v, ParameterName(v)); err != nil {
				return err
			}
			if code, err = pysrc.AppendParameter(code, ParameterName(v)); err != nil {
				return err
			}
		}
		c.Code = code

		for k := i + 1; k < len(g.cells); k++ {
			caller := g.cells[k]
			for _, fn := range g.boundCalls(i, k) {
				for _, v := range replace {
					if caller.Code, err = pysrc.AddCallKeyword(caller.Code, fn, ParameterName(v), v); err != nil {
						return err
					}
					caller.Reads.Add(v)
					if c.Wildcards.Has(v) {
						caller.Wildcards.Add(v)
					}
				}
			}
		}

		c.ReplacedFunctionVariables.Add(replace...)
		c.Reads = NameSet{}
		c.Wildcards = NameSet{}
		g.BuildDependencyGraph()
		return nil
	})
}

// RemoveFunctionDependency reverses MakeFunctionIndependent for v: the
// parameter is stripped, the body refers to v again and later call sites
// stop passing it.
func (g *Graph) RemoveFunctionDependency(i int, v string) error {
	if err := g.checkIndex(i); err != nil {
		return err
	}
	c := g.cells[i]
	if !c.IsFunctionCell {
		return &InputError{Kind: ErrNotFunctionCell, Msg: fmt.Sprintf("cell %d", i)}
	}
	if !c.ReplacedFunctionVariables.Has(v) {
		return unknownf("cell %d has no parameter for %q", i, v)
	}

	return g.atomically(func() error {
		param := ParameterName(v)
		code, err := pysrc.RemoveParameter(c.Code, param)
		if err != nil {
			return err
		}
		if code, err = pysrc.RenameIdentifier(code, param, v); err != nil {
			return err
		}
		c.Code = code
		c.Reads.Add(v)
		c.ReplacedFunctionVariables.Remove(v)

		for k := i + 1; k < len(g.cells); k++ {
			caller := g.cells[k]
			calls := g.boundCalls(i, k)
			if len(calls) == 0 {
				continue
			}
			for _, fn := range calls {
				if caller.Code, err = pysrc.RemoveCallKeyword(caller.Code, fn, param); err != nil {
					return err
				}
			}
			ids, err := pysrc.Identifiers(caller.Code)
			if err != nil {
				return err
			}
			if !NewNameSet(ids...).Has(v) {
				caller.Reads.Remove(v)
				caller.Wildcards.Remove(v)
			}
		}

		g.BuildDependencyGraph()
		return nil
	})
}

// boundCalls returns the functions of cell i that cell k calls and does not
// resolve to a different declaring cell.
func (g *Graph) boundCalls(i, k int) []string {
	fc, caller := g.cells[i], g.cells[k]
	var out []string
	for _, fn := range fc.Declares.Sorted() {
		if !caller.Calls.Has(fn) {
			continue
		}
		if j, ok := caller.DependsOnFunction[fn]; ok && j != i {
			continue
		}
		out = append(out, fn)
	}
	return out
}
