package pipeline

import (
	"fmt"
	"path"
	"strings"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
)

const (
	resultsDir  = "results"
	scriptsDir  = "scripts"
	commonFile  = "common.py"
	configFile  = "config.yaml"
	indentation = "    "
)

// OutputPath is where step s stores variable v.
func OutputPath(s *Step, v string) string {
	return path.Join(resultsDir, s.Label(), v+".pkl")
}

func donePath(s *Step) string {
	return path.Join(resultsDir, s.Label()+".done")
}

// ScriptPath is the script a rule step runs.
func ScriptPath(s *Step) string {
	return path.Join(scriptsDir, s.Label()+".py")
}

// ruleOutputs are the outputs of s that a later rule consumes.
func (p *Pipeline) ruleOutputs(s *Step) []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range p.OutgoingEdges(s.Index) {
		if p.Steps[e.To].Role == cellgraph.RoleRule && !seen[e.Variable] {
			seen[e.Variable] = true
			out = append(out, e.Variable)
		}
	}
	return out
}

// ruleInputs are the inputs of s produced by other rules.
func (p *Pipeline) ruleInputs(s *Step) []*Edge {
	var out []*Edge
	for _, e := range p.IncomingEdges(s.Index) {
		if p.Steps[e.From].Role == cellgraph.RoleRule {
			out = append(out, e)
		}
	}
	return out
}

// RenderSnakefile writes the workflow. Rule steps with stored rule text use
// it verbatim; the others get a rule derived from their dependencies.
func RenderSnakefile(p *Pipeline) string {
	var b strings.Builder
	b.WriteString("# Generated by cellgraph. Edit the notebook, not this file.\n\n")
	if strings.TrimSpace(p.Config) != "" {
		fmt.Fprintf(&b, "configfile: %q\n\n", configFile)
	}

	rules := p.Rules()
	var targets []string
	for _, s := range rules {
		if len(p.ruleOutputs(s)) == 0 {
			targets = append(targets, donePath(s))
		}
	}
	b.WriteString("rule all:\n")
	b.WriteString(indentation + "input:\n")
	for _, t := range targets {
		fmt.Fprintf(&b, "%s%s%q,\n", indentation, indentation, t)
	}

	for _, s := range rules {
		b.WriteString("\n")
		if s.RuleText != "" {
			b.WriteString(strings.TrimRight(s.RuleText, "\n"))
			b.WriteString("\n")
			continue
		}
		b.WriteString(p.renderRule(s))
	}
	return b.String()
}

func (p *Pipeline) renderRule(s *Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rule %s:\n", s.Label())
	section := func(name string, entries []string) {
		if len(entries) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s%s:\n", indentation, name)
		for _, e := range entries {
			fmt.Fprintf(&b, "%s%s%s,\n", indentation, indentation, e)
		}
	}

	var inputs []string
	for _, e := range p.ruleInputs(s) {
		inputs = append(inputs, fmt.Sprintf("%s=%q", e.Variable, OutputPath(p.Steps[e.From], e.Variable)))
	}
	for _, f := range s.ReadsFile {
		inputs = append(inputs, fmt.Sprintf("%q", f))
	}
	section("input", inputs)

	var outputs []string
	for _, v := range p.ruleOutputs(s) {
		outputs = append(outputs, fmt.Sprintf("%s=%q", v, OutputPath(s, v)))
	}
	if len(outputs) == 0 {
		outputs = append(outputs, fmt.Sprintf("done=touch(%q)", donePath(s)))
	}
	section("output", outputs)

	var params []string
	for _, w := range s.Wildcards {
		params = append(params, fmt.Sprintf("%s=config[%q]", w, w))
	}
	section("params", params)

	fmt.Fprintf(&b, "%sscript:\n%s%s%q\n", indentation, indentation, indentation, ScriptPath(s))
	return b.String()
}

// RenderScript returns the Python script for rule step s: the generated
// prefix, the cell code and the generated suffix. Without generated glue the
// script loads its rule inputs and saves its outputs with pickle.
func (p *Pipeline) RenderScript(s *Step) string {
	var parts []string
	if len(p.Scripts()) > 0 {
		parts = append(parts, "from common import *")
	}
	prefix, suffix := s.PrefixCode, s.SuffixCode
	if prefix == "" && suffix == "" {
		prefix, suffix = p.defaultGlue(s)
	}
	for _, part := range []string{prefix, s.Code, suffix} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimRight(part, "\n"))
		}
	}
	return strings.Join(parts, "\n\n") + "\n"
}

func (p *Pipeline) defaultGlue(s *Step) (prefix, suffix string) {
	var pre []string
	inputs := p.ruleInputs(s)
	outputs := p.ruleOutputs(s)
	if len(inputs) > 0 || len(outputs) > 0 {
		pre = append(pre, "import pickle")
	}
	for _, e := range inputs {
		pre = append(pre, fmt.Sprintf("with open(snakemake.input.%s, \"rb\") as f:\n%s%s = pickle.load(f)", e.Variable, indentation, e.Variable))
	}
	for _, w := range s.Wildcards {
		pre = append(pre, fmt.Sprintf("%s = snakemake.params.%s", w, w))
	}

	var post []string
	for _, v := range outputs {
		post = append(post, fmt.Sprintf("with open(snakemake.output.%s, \"wb\") as f:\n%spickle.dump(%s, f)", v, indentation, v))
	}
	return strings.Join(pre, "\n"), strings.Join(post, "\n")
}

// RenderCommon returns the code shared by every rule: the script steps in
// notebook order.
func (p *Pipeline) RenderCommon() string {
	var parts []string
	for _, s := range p.Scripts() {
		parts = append(parts, strings.TrimRight(s.Code, "\n"))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n") + "\n"
}

// Files returns every exported file keyed by path relative to the export
// root.
func (p *Pipeline) Files() map[string]string {
	files := map[string]string{"Snakefile": RenderSnakefile(p)}
	if common := p.RenderCommon(); common != "" {
		files[path.Join(scriptsDir, commonFile)] = common
	}
	if strings.TrimSpace(p.Config) != "" {
		files[configFile] = p.Config
	}
	for _, s := range p.Rules() {
		files[ScriptPath(s)] = p.RenderScript(s)
	}
	return files
}
