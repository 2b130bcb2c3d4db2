package pysrc

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Function is a top-level function definition found in a cell.
type Function struct {
	Name   string
	Params []string
	// Span covers the definition, its decorators, and at most one comment
	// line directly above it.
	Span Span
	Text string
}

// TopLevelFunctions returns the module-level function definitions of code.
func TopLevelFunctions(code string) ([]Function, error) {
	var out []Function
	err := withTree(code, func(root *sitter.Node, src []byte) error {
		for i := 0; i < int(root.ChildCount()); i++ {
			child := root.Child(i)
			fn := functionNode(child)
			if fn == nil {
				continue
			}
			start := int(child.StartByte())
			if i > 0 {
				prev := root.Child(i - 1)
				if prev.Type() == "comment" && prev.StartPoint().Column == 0 &&
					prev.EndPoint().Row+1 == child.StartPoint().Row {
					start = int(prev.StartByte())
				}
			}
			end := int(child.EndByte())

			f := Function{Span: Span{Start: start, End: end}, Text: string(src[start:end])}
			if name := fn.ChildByFieldName("name"); name != nil {
				f.Name = name.Content(src)
			}
			if params := fn.ChildByFieldName("parameters"); params != nil {
				for k := 0; k < int(params.NamedChildCount()); k++ {
					if p := paramName(params.NamedChild(k), src); p != "" {
						f.Params = append(f.Params, p)
					}
				}
			}
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

// paramName returns the bound name of a parameter node.
func paramName(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "identifier":
		return n.Content(src)
	case "default_parameter", "typed_default_parameter":
		if name := n.ChildByFieldName("name"); name != nil {
			return name.Content(src)
		}
	case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
		for k := 0; k < int(n.NamedChildCount()); k++ {
			if name := paramName(n.NamedChild(k), src); name != "" {
				return name
			}
		}
	}
	return ""
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// RemoveSpans deletes spans from code along with the line break that ends
// each one, then collapses the blank runs left behind.
func RemoveSpans(code string, spans []Span) string {
	edits := make([]edit, 0, len(spans))
	for _, s := range spans {
		end := s.End
		if end < len(code) && code[end] == '\n' {
			end++
		}
		edits = append(edits, edit{start: s.Start, end: end})
	}
	out := applyEdits(code, edits)
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.Trim(out, "\n")
}

// RenameIdentifier renames every reference to from as to.
func RenameIdentifier(code, from, to string) (string, error) {
	var edits []edit
	err := withTree(code, func(root *sitter.Node, src []byte) error {
		walk(root, func(n *sitter.Node) bool {
			if n.Type() == "identifier" && n.Content(src) == from && isReference(n) {
				edits = append(edits, edit{start: int(n.StartByte()), end: int(n.EndByte()), text: to})
			}
			return true
		})
		return nil
	})
	if err != nil {
		return code, err
	}
	return applyEdits(code, edits), nil
}

// AppendParameter adds param to the signature of every top-level function
// that does not already declare it. It is placed ahead of a **kwargs
// parameter when one is present, and defaults to None when it follows
// parameters with defaults.
func AppendParameter(code, param string) (string, error) {
	var edits []edit
	err := withTree(code, func(root *sitter.Node, src []byte) error {
		for _, fn := range topLevelFunctionNodes(root) {
			params := fn.ChildByFieldName("parameters")
			if params == nil {
				continue
			}
			var kwargs *sitter.Node
			declared, defaults := false, false
			for k := 0; k < int(params.NamedChildCount()); k++ {
				child := params.NamedChild(k)
				if paramName(child, src) == param {
					declared = true
				}
				switch child.Type() {
				case "dictionary_splat_pattern":
					kwargs = child
				case "default_parameter", "typed_default_parameter":
					defaults = true
				case "list_splat_pattern", "keyword_separator":
					defaults = false
				}
			}
			if declared {
				continue
			}
			text := param
			if defaults {
				text += "=None"
			}
			if kwargs != nil {
				at := int(kwargs.StartByte())
				edits = append(edits, edit{start: at, end: at, text: text + ", "})
				continue
			}
			edits = append(edits, appendToList(params, src, text))
		}
		return nil
	})
	if err != nil {
		return code, err
	}
	return applyEdits(code, edits), nil
}

// RemoveParameter drops param from the signature of every top-level function.
func RemoveParameter(code, param string) (string, error) {
	var edits []edit
	err := withTree(code, func(root *sitter.Node, src []byte) error {
		for _, fn := range topLevelFunctionNodes(root) {
			params := fn.ChildByFieldName("parameters")
			if params == nil {
				continue
			}
			for k := 0; k < int(params.ChildCount()); k++ {
				child := params.Child(k)
				if child.IsNamed() && paramName(child, src) == param {
					edits = append(edits, removeFromList(params, k))
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return code, err
	}
	return applyEdits(code, edits), nil
}

// AddCallKeyword appends keyword=value to every call of the plain function
// fn that does not pass keyword yet.
func AddCallKeyword(code, fn, keyword, value string) (string, error) {
	var edits []edit
	err := withTree(code, func(root *sitter.Node, src []byte) error {
		walk(root, func(n *sitter.Node) bool {
			args := callArguments(n, src, fn)
			if args == nil {
				return true
			}
			if keywordIndex(args, src, keyword) >= 0 {
				return true
			}
			edits = append(edits, appendToList(args, src, keyword+"="+value))
			return true
		})
		return nil
	})
	if err != nil {
		return code, err
	}
	return applyEdits(code, edits), nil
}

// RemoveCallKeyword strips the keyword argument from every call of fn.
func RemoveCallKeyword(code, fn, keyword string) (string, error) {
	var edits []edit
	err := withTree(code, func(root *sitter.Node, src []byte) error {
		walk(root, func(n *sitter.Node) bool {
			args := callArguments(n, src, fn)
			if args == nil {
				return true
			}
			if k := keywordIndex(args, src, keyword); k >= 0 {
				edits = append(edits, removeFromList(args, k))
			}
			return true
		})
		return nil
	})
	if err != nil {
		return code, err
	}
	return applyEdits(code, edits), nil
}

// callArguments returns the argument list of n when n calls fn by name.
func callArguments(n *sitter.Node, src []byte, fn string) *sitter.Node {
	if n.Type() != "call" {
		return nil
	}
	callee := n.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" || callee.Content(src) != fn {
		return nil
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.Type() != "argument_list" {
		return nil
	}
	return args
}

// keywordIndex returns the child index of keyword in an argument list, or -1.
func keywordIndex(args *sitter.Node, src []byte, keyword string) int {
	for k := 0; k < int(args.ChildCount()); k++ {
		child := args.Child(k)
		if child.Type() != "keyword_argument" {
			continue
		}
		if name := child.ChildByFieldName("name"); name != nil && name.Content(src) == keyword {
			return k
		}
	}
	return -1
}
