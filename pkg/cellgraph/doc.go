// Package cellgraph models a notebook as an ordered sequence of cells and
// derives the data-flow edges between them.
//
// A read resolves to the nearest preceding cell that writes the variable; a
// call resolves to the first function cell that declares it. Every edge is
// an index into the graph's own cell sequence, so any mutation that inserts
// or removes a cell rebuilds the edges before it returns.
//
// Each cell carries a RuleNode that records whether it becomes a pipeline
// rule, an importable script, or stays undecided. The legal roles follow
// from the roles of the cells it depends on: consuming a rule forces a rule,
// consuming an undecided cell rules out script, and function cells are
// always scripts.
//
// Mutations are atomic. A mutation that fails leaves the graph exactly as it
// was. The graph does no locking; see package workspace for the driver that
// serializes access and runs collaborator refinements.
package cellgraph
