package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
	"github.com/ravi-parthasarathy/cellgraph/pkg/pipeline"
)

type usage map[string]cellgraph.Usage

func (u usage) Analyze(_ context.Context, fragments []string) ([]cellgraph.Usage, error) {
	out := make([]cellgraph.Usage, len(fragments))
	for i, f := range fragments {
		out[i] = u[f]
	}
	return out, nil
}

// workflow builds: imports (script), load (rule), double (rule), report (rule).
func workflow(t *testing.T) *cellgraph.Graph {
	t.Helper()
	cells := []string{
		"import pickle",
		"df = read(path)",
		"doubled = df * factor",
		"print(doubled)",
	}
	u := usage{
		cells[1]: {Reads: []string{"path"}, Writes: []string{"df"}, ReadsFile: []string{"data/in.csv"}},
		cells[2]: {Reads: []string{"df", "factor"}, Writes: []string{"doubled"}},
		cells[3]: {Reads: []string{"doubled"}},
	}
	g := cellgraph.New(cellgraph.WithConfig("factor: 2\npath: data/in.csv\n"))
	if err := g.ImportFromRawCells(cells); err != nil {
		t.Fatal(err)
	}
	usages, _ := u.Analyze(context.Background(), cells)
	for i, x := range usages {
		if err := g.RecordAnalysis(i, x); err != nil {
			t.Fatal(err)
		}
	}
	g.BuildDependencyGraph()
	for _, w := range []struct {
		cell int
		name string
	}{{1, "path"}, {2, "factor"}} {
		if err := g.SetDependencyAsWildcard(w.cell, w.name); err != nil {
			t.Fatal(err)
		}
	}
	steps := []struct {
		name string
		role cellgraph.Role
	}{{"imports", cellgraph.RoleScript}, {"load", cellgraph.RoleRule}, {"double", cellgraph.RoleRule}, {"report", cellgraph.RoleRule}}
	for i, s := range steps {
		if err := g.SetRole(i, s.role); err != nil {
			t.Fatalf("SetRole(%d): %v", i, err)
		}
		if err := g.SetName(i, s.name); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

// ─── Model ────────────────────────────────────────────────────────────────────

func TestFromGraph(t *testing.T) {
	p := pipeline.FromGraph("nb", workflow(t))
	if len(p.Steps) != 4 || len(p.Rules()) != 3 || len(p.Scripts()) != 1 {
		t.Fatalf("steps=%d rules=%d scripts=%d", len(p.Steps), len(p.Rules()), len(p.Scripts()))
	}
	if got := p.Steps[1].Outputs; len(got) != 1 || got[0] != "df" {
		t.Errorf("load outputs = %v, want [df]", got)
	}
	if len(p.Edges) != 2 {
		t.Fatalf("edges = %+v, want 2", p.Edges)
	}
	if e := p.IncomingEdges(2)[0]; e.From != 1 || e.Variable != "df" {
		t.Errorf("double input edge = %+v", e)
	}
}

// ─── Snakefile ────────────────────────────────────────────────────────────────

func TestRenderSnakefile(t *testing.T) {
	p := pipeline.FromGraph("nb", workflow(t))
	got := pipeline.RenderSnakefile(p)
	for _, want := range []string{
		`configfile: "config.yaml"`,
		"rule all:\n    input:\n        \"results/report.done\",\n",
		"rule load:\n    input:\n        \"data/in.csv\",\n    output:\n        df=\"results/load/df.pkl\",\n    params:\n        path=config[\"path\"],\n",
		"rule double:\n    input:\n        df=\"results/load/df.pkl\",\n",
		"doubled=\"results/double/doubled.pkl\"",
		"factor=config[\"factor\"]",
		"done=touch(\"results/report.done\")",
		"script:\n        \"scripts/report.py\"",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Snakefile missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "rule imports") {
		t.Errorf("script cells must not become rules")
	}
}

func TestRenderSnakefile_StoredRuleTextWins(t *testing.T) {
	g := workflow(t)
	if err := g.SetGeneratedCode(3, cellgraph.GeneratedCode{RuleText: "rule report:\n    shell: \"cat x\"\n"}); err != nil {
		t.Fatal(err)
	}
	got := pipeline.RenderSnakefile(pipeline.FromGraph("nb", g))
	if !strings.Contains(got, "rule report:\n    shell: \"cat x\"\n") || strings.Contains(got, "scripts/report.py") {
		t.Errorf("stored rule text not used:\n%s", got)
	}
}

func TestRenderScript(t *testing.T) {
	p := pipeline.FromGraph("nb", workflow(t))
	got := p.RenderScript(p.Steps[2])
	want := "from common import *\n\n" +
		"import pickle\n" +
		"with open(snakemake.input.df, \"rb\") as f:\n    df = pickle.load(f)\n" +
		"factor = snakemake.params.factor\n\n" +
		"doubled = df * factor\n\n" +
		"with open(snakemake.output.doubled, \"wb\") as f:\n    pickle.dump(doubled, f)\n"
	if got != want {
		t.Errorf("script =\n%s\nwant\n%s", got, want)
	}

	files := p.Files()
	for _, name := range []string{"Snakefile", "config.yaml", "scripts/common.py", "scripts/load.py", "scripts/double.py", "scripts/report.py"} {
		if _, ok := files[name]; !ok {
			t.Errorf("export missing %s", name)
		}
	}
	if files["scripts/common.py"] != "import pickle\n" {
		t.Errorf("common = %q", files["scripts/common.py"])
	}
}

// ─── DOT ──────────────────────────────────────────────────────────────────────

func TestDOT_RoundTrip(t *testing.T) {
	p := pipeline.FromGraph("nb", workflow(t))
	src, err := pipeline.RenderDOT(p)
	if err != nil {
		t.Fatalf("RenderDOT: %v", err)
	}
	if !strings.Contains(src, "digraph") {
		t.Fatalf("not a digraph:\n%s", src)
	}
	back, err := pipeline.ParseDOT(src)
	if err != nil {
		t.Fatalf("ParseDOT: %v\n%s", err, src)
	}
	if len(back.Steps) != len(p.Steps) || len(back.Edges) != len(p.Edges) {
		t.Fatalf("round trip: %d steps %d edges, want %d %d", len(back.Steps), len(back.Edges), len(p.Steps), len(p.Edges))
	}
	for i, s := range back.Steps {
		if s.Name != p.Steps[i].Name || s.Role != p.Steps[i].Role {
			t.Errorf("step %d = %s/%s, want %s/%s", i, s.Name, s.Role, p.Steps[i].Name, p.Steps[i].Role)
		}
	}
	if back.Steps[2].Inputs["df"] != 1 {
		t.Errorf("double inputs = %v", back.Steps[2].Inputs)
	}
}

func TestParseDOT_Rejects(t *testing.T) {
	for name, src := range map[string]string{
		"syntax":       "digraph {",
		"bad node id":  `digraph g { x [label="a"] }`,
		"gap in steps": `digraph g { c0; c2 }`,
		"bad role":     `digraph g { c0 [comment="boss"] }`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := pipeline.ParseDOT(src); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// ─── Lint ─────────────────────────────────────────────────────────────────────

func TestValidate_Clean(t *testing.T) {
	if err := pipeline.ValidateErr(pipeline.FromGraph("nb", workflow(t))); err != nil {
		t.Fatalf("clean workflow failed lint: %v", err)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	g := workflow(t)
	g.SetConfig("factor: 2\n")
	if err := g.SetName(2, "load"); err != nil {
		t.Fatal(err)
	}
	if err := g.SetName(3, ""); err != nil {
		t.Fatal(err)
	}
	p := pipeline.FromGraph("nb", g)
	p.Steps[0].Missing = []string{"ghost"}

	errs := pipeline.Validate(p)
	wants := []string{
		`cell 0 (imports): reads "ghost"`,
		`cell 1 (load): wildcard "path" is not defined in config`,
		`cell 2 (load): name "load" already used by cell 1`,
		`cell 3: rule has no name`,
	}
	if len(errs) != len(wants) {
		t.Fatalf("errs = %v, want %d", errs, len(wants))
	}
	for i, want := range wants {
		if !strings.HasPrefix(errs[i].Error(), want) {
			t.Errorf("errs[%d] = %q, want prefix %q", i, errs[i].Error(), want)
		}
	}
}

func TestValidate_BadConfigAndUndecided(t *testing.T) {
	p := &pipeline.Pipeline{
		Config: "- a\n- b\n",
		Steps:  []*pipeline.Step{{Index: 0, Role: cellgraph.RoleUndecided, Legal: true}},
	}
	errs := pipeline.Validate(p)
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	joined := strings.Join(msgs, "\n")
	for _, want := range []string{"config is not a YAML mapping", "workflow has no rule cells", "role is undecided"} {
		if !strings.Contains(joined, want) {
			t.Errorf("lint output missing %q:\n%s", want, joined)
		}
	}
}
