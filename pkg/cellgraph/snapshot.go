package cellgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is the serialized form of a graph.
type Document struct {
	Cells              []*Cell `json:"cells"`
	Config             string  `json:"config"`
	CurrentStageMarker int     `json:"currentStageMarker"`
}

// MarshalDocument returns a detached document of the graph.
func (g *Graph) MarshalDocument() Document {
	doc := Document{Cells: make([]*Cell, len(g.cells)), Config: g.config, CurrentStageMarker: g.stage}
	for i, c := range g.cells {
		clone := c.Clone()
		doc.Cells[i] = &clone
	}
	return doc
}

// Serialize encodes the graph as JSON. Sets are sorted and map keys are
// ordered, so equal graphs encode to equal bytes.
func (g *Graph) Serialize() ([]byte, error) {
	data, err := json.Marshal(g.MarshalDocument())
	if err != nil {
		return nil, fmt.Errorf("serialize graph: %w", err)
	}
	return data, nil
}

// Deserialize replaces the graph with the one encoded in data. Unknown
// fields, unknown roles and edges that do not point backwards are rejected
// with ErrMalformedInput, leaving the graph unchanged. History is not
// touched.
func (g *Graph) Deserialize(data []byte) error {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return malformedf("snapshot: %v", err)
	}
	return g.LoadDocument(doc)
}

// LoadDocument validates doc and makes it the graph's state. The document's
// cells are copied.
func (g *Graph) LoadDocument(doc Document) error {
	cells := make([]*Cell, len(doc.Cells))
	for i, c := range doc.Cells {
		if c == nil {
			return malformedf("cell %d: null", i)
		}
		clone := c.Clone()
		clone.normalize()
		cells[i] = &clone
	}
	if err := validateCells(cells); err != nil {
		return err
	}

	g.cells = cells
	g.config = doc.Config
	g.stage = doc.CurrentStageMarker
	for i := range g.cells {
		g.updatePartition(i)
	}
	return nil
}

func validateCells(cells []*Cell) error {
	n := len(cells)
	for i, c := range cells {
		if _, err := ParseRole(string(c.Role.Kind)); err != nil {
			return malformedf("cell %d: %v", i, err)
		}
		for _, set := range []struct {
			field string
			names NameSet
		}{
			{"reads", c.Reads}, {"readsFile", c.ReadsFile}, {"writes", c.Writes},
			{"imports", c.Imports}, {"declares", c.Declares}, {"calls", c.Calls},
			{"missingDependencies", c.MissingDependencies}, {"wildcards", c.Wildcards},
			{"replacedFunctionVariables", c.ReplacedFunctionVariables},
		} {
			if err := checkNames(set.field, set.names.Sorted()); err != nil {
				return malformedf("cell %d: %v", i, err)
			}
		}
		for v, j := range c.DependsOn {
			if j < 0 || j >= i {
				return malformedf("cell %d: dependsOn %q points at %d", i, v, j)
			}
			if !cells[j].Writes.Has(v) {
				return malformedf("cell %d: dependsOn %q but cell %d does not write it", i, v, j)
			}
			if c.Wildcards.Has(v) {
				return malformedf("cell %d: %q is both a wildcard and a dependency", i, v)
			}
		}
		for fn, j := range c.DependsOnFunction {
			if j < 0 || j >= i {
				return malformedf("cell %d: dependsOnFunction %q points at %d", i, fn, j)
			}
		}
		for v, consumers := range c.WritesTo {
			for _, k := range consumers {
				if k <= i || k >= n {
					return malformedf("cell %d: writesTo %q points at %d", i, v, k)
				}
			}
		}
	}
	return nil
}
