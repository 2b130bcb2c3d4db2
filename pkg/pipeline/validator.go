package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

// LintError describes a problem in the exported workflow. Step is -1 for
// workflow-wide problems.
type LintError struct {
	Step    int
	Name    string
	Message string
}

func (e LintError) Error() string {
	switch {
	case e.Step < 0:
		return e.Message
	case e.Name != "":
		return fmt.Sprintf("cell %d (%s): %s", e.Step, e.Name, e.Message)
	}
	return fmt.Sprintf("cell %d: %s", e.Step, e.Message)
}

var ruleName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the workflow and returns every problem found, in cell
// order.
func Validate(p *Pipeline) []LintError {
	var errs []LintError
	add := func(s *Step, format string, args ...any) {
		errs = append(errs, LintError{Step: s.Index, Name: s.Name, Message: fmt.Sprintf(format, args...)})
	}

	keys, err := configKeys(p.Config)
	if err != nil {
		errs = append(errs, LintError{Step: -1, Message: fmt.Sprintf("config is not a YAML mapping: %v", err)})
	}

	if len(p.Rules()) == 0 {
		errs = append(errs, LintError{Step: -1, Message: "workflow has no rule cells"})
	}

	seen := map[string]int{}
	for _, s := range p.Steps {
		if !s.Legal {
			add(s, "role %s is not allowed by its dependencies", s.Role)
		}
		if s.Role == cellgraph.RoleUndecided {
			add(s, "role is undecided")
		}
		if s.Role == cellgraph.RoleRule {
			switch {
			case s.Name == "":
				add(s, "rule has no name")
			case !ruleName.MatchString(s.Name):
				add(s, "rule name %q is not an identifier", s.Name)
			}
		}
		if s.Name != "" {
			if first, dup := seen[s.Name]; dup {
				add(s, "name %q already used by cell %d", s.Name, first)
			} else {
				seen[s.Name] = s.Index
			}
		}
		for _, v := range s.Missing {
			add(s, "reads %q but no earlier cell writes it", v)
		}
		for _, w := range s.Wildcards {
			if err == nil && !keys[w] {
				add(s, "wildcard %q is not defined in config", w)
			}
		}
	}
	sort.SliceStable(errs, func(a, b int) bool { return errs[a].Step < errs[b].Step })
	return errs
}

// ValidateErr returns nil for a clean workflow, or one error listing every
// problem.
func ValidateErr(p *Pipeline) error {
	errs := Validate(p)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("pipeline validation failed:\n  %s", strings.Join(msgs, "\n  "))
}

// configKeys returns the top-level keys of a YAML mapping.
func configKeys(config string) (map[string]bool, error) {
	keys := map[string]bool{}
	if strings.TrimSpace(config) == "" {
		return keys, nil
	}
	var m map[string]any
	if err := yaml.Unmarshal([]byte(config), &m); err != nil {
		return nil, err
	}
	for k := range m {
		keys[k] = true
	}
	return keys, nil
}
