// Package pysrc performs the Python source surgery the cell graph needs:
// locating top-level functions and imports, scanning symbols, renaming
// identifiers and threading extra parameters through definitions and call
// sites. All offsets are byte offsets into the cell code.
package pysrc

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Span is a half-open byte range [Start, End) of a code string.
type Span struct {
	Start int
	End   int
}

// edit replaces src[start:end] with text. Insertions use start == end.
type edit struct {
	start int
	end   int
	text  string
}

// withTree parses code and hands the root node to fn. The tree is closed
// when fn returns, so fn must not retain nodes.
func withTree(code string, fn func(root *sitter.Node, src []byte) error) error {
	src := []byte(code)
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return fmt.Errorf("pysrc: parse: %w", err)
	}
	defer tree.Close()
	return fn(tree.RootNode(), src)
}

// applyEdits applies non-overlapping edits back to front so earlier offsets
// stay valid.
func applyEdits(code string, edits []edit) string {
	if len(edits) == 0 {
		return code
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].start == edits[j].start {
			return edits[i].end > edits[j].end
		}
		return edits[i].start > edits[j].start
	})
	out := code
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}
	return out
}

// walk visits n and all of its descendants depth-first.
func walk(n *sitter.Node, visit func(n *sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

// sameNode reports whether a and b denote the same syntax node.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// isReference reports whether an identifier node is a name reference rather
// than an attribute name, a keyword-argument label or a definition name.
func isReference(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case "attribute":
		return !sameNode(parent.ChildByFieldName("attribute"), n)
	case "keyword_argument":
		return !sameNode(parent.ChildByFieldName("name"), n)
	case "function_definition", "class_definition":
		return !sameNode(parent.ChildByFieldName("name"), n)
	}
	return true
}

// functionNode unwraps a decorated definition to its function definition.
func functionNode(n *sitter.Node) *sitter.Node {
	switch n.Type() {
	case "function_definition":
		return n
	case "decorated_definition":
		if def := n.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
			return def
		}
	}
	return nil
}

// topLevelFunctionNodes returns the function definitions directly under the
// module, unwrapped from decorators.
func topLevelFunctionNodes(root *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if fn := functionNode(root.NamedChild(i)); fn != nil {
			out = append(out, fn)
		}
	}
	return out
}

// innerText returns the trimmed text between a bracketed node's delimiters.
func innerText(n *sitter.Node, src []byte) string {
	start, end := int(n.StartByte())+1, int(n.EndByte())-1
	if end < start {
		return ""
	}
	return strings.TrimSpace(string(src[start:end]))
}

// appendToList builds the insertion that adds item as the last element of a
// parenthesised list node. After a trailing comma the item brings its own
// comma, so removeFromList takes back exactly the inserted text.
func appendToList(list *sitter.Node, src []byte, item string) edit {
	at := int(list.EndByte()) - 1
	if n := int(list.ChildCount()); n >= 2 {
		if last := list.Child(n - 2); last != nil && last.Type() == "," {
			at = int(last.EndByte())
			return edit{start: at, end: at, text: " " + item + ","}
		}
	}
	if innerText(list, src) == "" {
		return edit{start: at, end: at, text: item}
	}
	return edit{start: at, end: at, text: ", " + item}
}

// removeFromList builds the deletion of list child k together with one
// adjacent comma.
func removeFromList(list *sitter.Node, k int) edit {
	child := list.Child(k)
	if k > 0 {
		if prev := list.Child(k - 1); prev != nil && prev.Type() == "," {
			return edit{start: int(prev.StartByte()), end: int(child.EndByte())}
		}
	}
	if k+1 < int(list.ChildCount()) {
		if next := list.Child(k + 1); next != nil && next.Type() == "," {
			end := int(next.EndByte())
			if k+2 < int(list.ChildCount()) {
				end = int(list.Child(k + 2).StartByte())
			}
			return edit{start: int(child.StartByte()), end: end}
		}
	}
	return edit{start: int(child.StartByte()), end: int(child.EndByte())}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
