package pysrc

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Symbols lists the names a cell binds by import, declares as top-level
// functions, and calls as plain (unqualified) functions.
type Symbols struct {
	Imports  []string
	Declares []string
	Calls    []string
}

// Scan extracts the import, declaration and call names of code.
func Scan(code string) (Symbols, error) {
	var out Symbols
	err := withTree(code, func(root *sitter.Node, src []byte) error {
		imports := map[string]bool{}
		calls := map[string]bool{}
		declares := map[string]bool{}

		for _, fn := range topLevelFunctionNodes(root) {
			if name := fn.ChildByFieldName("name"); name != nil {
				declares[name.Content(src)] = true
			}
		}

		walk(root, func(n *sitter.Node) bool {
			switch n.Type() {
			case "import_statement", "import_from_statement":
				for _, name := range importedNames(n, src) {
					imports[name] = true
				}
				return false
			case "call":
				if fn := n.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
					calls[fn.Content(src)] = true
				}
			}
			return true
		})

		out = Symbols{
			Imports:  sortedKeys(imports),
			Declares: sortedKeys(declares),
			Calls:    sortedKeys(calls),
		}
		return nil
	})
	return out, err
}

// importedNames returns the local names an import statement binds.
func importedNames(n *sitter.Node, src []byte) []string {
	var names []string
	fromImport := n.Type() == "import_from_statement"
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if fromImport && sameNode(n.ChildByFieldName("module_name"), child) {
			continue
		}
		switch child.Type() {
		case "aliased_import":
			if alias := child.ChildByFieldName("alias"); alias != nil {
				names = append(names, alias.Content(src))
			}
		case "dotted_name", "identifier":
			parts := strings.Split(child.Content(src), ".")
			if fromImport {
				names = append(names, strings.TrimSpace(parts[len(parts)-1]))
			} else {
				names = append(names, strings.TrimSpace(parts[0]))
			}
		}
	}
	return names
}

// IsFunctionOnly reports whether code consists solely of top-level function
// definitions and comments, with at least one function.
func IsFunctionOnly(code string) (bool, error) {
	var only bool
	err := withTree(code, func(root *sitter.Node, _ []byte) error {
		functions := 0
		for i := 0; i < int(root.NamedChildCount()); i++ {
			child := root.NamedChild(i)
			switch {
			case child.Type() == "comment":
			case functionNode(child) != nil:
				functions++
			default:
				return nil
			}
		}
		only = functions > 0
		return nil
	})
	return only, err
}

// Identifiers returns every name referenced in code, excluding attribute
// names, keyword-argument labels and definition names.
func Identifiers(code string) ([]string, error) {
	var out []string
	err := withTree(code, func(root *sitter.Node, src []byte) error {
		seen := map[string]bool{}
		walk(root, func(n *sitter.Node) bool {
			if n.Type() == "identifier" && isReference(n) {
				seen[n.Content(src)] = true
			}
			return true
		})
		out = sortedKeys(seen)
		return nil
	})
	return out, err
}

// ImportStatements returns the spans and texts of top-level import
// statements in source order.
func ImportStatements(code string) ([]Span, []string, error) {
	var (
		spans []Span
		texts []string
	)
	err := withTree(code, func(root *sitter.Node, src []byte) error {
		for i := 0; i < int(root.NamedChildCount()); i++ {
			child := root.NamedChild(i)
			switch child.Type() {
			case "import_statement", "import_from_statement", "future_import_statement":
				spans = append(spans, Span{Start: int(child.StartByte()), End: int(child.EndByte())})
				texts = append(texts, child.Content(src))
			}
		}
		return nil
	})
	return spans, texts, err
}
