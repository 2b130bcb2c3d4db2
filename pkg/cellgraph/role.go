package cellgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the part a cell plays in the exported pipeline.
type Role string

const (
	RoleRule      Role = "rule"
	RoleScript    Role = "script"
	RoleUndecided Role = "undecided"
)

// reconcileOrder is the fallback order used when a cell's role becomes
// illegal: leave it undetermined before forcing a choice.
var reconcileOrder = []Role{RoleUndecided, RoleRule, RoleScript}

// ParseRole converts s (case-insensitive) into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleRule, RoleScript, RoleUndecided:
		return r, nil
	}
	return "", malformedf("unknown role %q", s)
}

// LegalRoles marks which roles a cell may take.
type LegalRoles struct {
	Rule      bool `json:"rule"`
	Script    bool `json:"script"`
	Undecided bool `json:"undecided"`
}

// Allows reports whether r is marked legal.
func (l LegalRoles) Allows(r Role) bool {
	switch r {
	case RoleRule:
		return l.Rule
	case RoleScript:
		return l.Script
	case RoleUndecided:
		return l.Undecided
	}
	return false
}

// RuleNode is the pipeline-role metadata of one cell.
type RuleNode struct {
	Kind Role
	Name string
	// DependenciesByRole buckets the cell's DependsOn edges by the role of
	// the source cell. It is derived and never serialized.
	DependenciesByRole map[Role]map[string]int
	PrefixCode         string
	SuffixCode         string
	GeneratedRuleText  string

	functionCell bool
}

// CanBecome returns the roles the node may legally take given its
// dependency partition.
func (n RuleNode) CanBecome() LegalRoles {
	switch {
	case n.functionCell:
		return LegalRoles{Script: true}
	case len(n.DependenciesByRole[RoleRule]) > 0:
		return LegalRoles{Rule: true}
	case len(n.DependenciesByRole[RoleUndecided]) > 0:
		return LegalRoles{Rule: true, Undecided: true}
	}
	return LegalRoles{Rule: true, Script: true, Undecided: true}
}

// SetRole changes the role to r. An illegal r is an error unless permissive
// is set, in which case the request is ignored. It reports whether the role
// was applied.
func (n *RuleNode) SetRole(cell int, r Role, permissive bool) (bool, error) {
	if n.CanBecome().Allows(r) {
		n.Kind = r
		return true, nil
	}
	if permissive {
		return false, nil
	}
	return false, &IllegalRoleTransitionError{Cell: cell, From: n.Kind, To: r}
}

// Reconcile moves an illegal role to the first legal one in priority order
// undecided, rule, script.
func (n *RuleNode) Reconcile() {
	legal := n.CanBecome()
	if legal.Allows(n.Kind) {
		return
	}
	for _, r := range reconcileOrder {
		if legal.Allows(r) {
			n.Kind = r
			return
		}
	}
}

func (n *RuleNode) clone() RuleNode {
	out := *n
	if n.DependenciesByRole != nil {
		out.DependenciesByRole = make(map[Role]map[string]int, len(n.DependenciesByRole))
		for r, deps := range n.DependenciesByRole {
			out.DependenciesByRole[r] = cloneEdges(deps)
		}
	}
	return out
}

type ruleNodeJSON struct {
	Name              string     `json:"name"`
	RoleKind          Role       `json:"roleKind"`
	PrefixCode        string     `json:"prefixCode"`
	SuffixCode        string     `json:"suffixCode"`
	GeneratedRuleText string     `json:"generatedRuleText"`
	LegalRoles        LegalRoles `json:"legalRoles"`
}

func (n RuleNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleNodeJSON{
		Name:              n.Name,
		RoleKind:          n.Kind,
		PrefixCode:        n.PrefixCode,
		SuffixCode:        n.SuffixCode,
		GeneratedRuleText: n.GeneratedRuleText,
		LegalRoles:        n.CanBecome(),
	})
}

// UnmarshalJSON decodes a role strictly. LegalRoles is recomputed from the
// graph, so the stored value is only checked for shape.
func (n *RuleNode) UnmarshalJSON(data []byte) error {
	var doc ruleNodeJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("role: %w", err)
	}
	kind, err := ParseRole(string(doc.RoleKind))
	if err != nil {
		return err
	}
	*n = RuleNode{
		Kind:              kind,
		Name:              doc.Name,
		PrefixCode:        doc.PrefixCode,
		SuffixCode:        doc.SuffixCode,
		GeneratedRuleText: doc.GeneratedRuleText,
	}
	return nil
}
