package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ─── TestInitLogger ───────────────────────────────────────────────────────────

func TestInitLogger_ValidLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "DEBUG", "INFO"} {
		if err := initLogger(lvl, "text"); err != nil {
			t.Errorf("initLogger(%q, text): unexpected error: %v", lvl, err)
		}
	}
}

func TestInitLogger_ValidFormats(t *testing.T) {
	for _, format := range []string{"text", "json", "TEXT", "JSON"} {
		if err := initLogger("info", format); err != nil {
			t.Errorf("initLogger(info, %q): unexpected error: %v", format, err)
		}
	}
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	if err := initLogger("verbose", "text"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestInitLogger_InvalidFormat(t *testing.T) {
	if err := initLogger("info", "xml"); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func TestSplitAt(t *testing.T) {
	a, b, err := splitAt("x = 1\ny = 2\nz = 3", 3)
	if err != nil {
		t.Fatalf("splitAt: %v", err)
	}
	if a != "x = 1\ny = 2" || b != "z = 3" {
		t.Errorf("halves = %q / %q", a, b)
	}
	for _, at := range []int{0, 1, 4} {
		if _, _, err := splitAt("x = 1\ny = 2\nz = 3", at); err == nil {
			t.Errorf("splitAt(%d) should fail", at)
		}
	}
}

// ─── CLI flow ─────────────────────────────────────────────────────────────────

// cli runs the root command offline against project.
func cli(t *testing.T, project string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--offline", "--project", project}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustCLI(t *testing.T, project string, args ...string) string {
	t.Helper()
	out, err := cli(t, project, args...)
	if err != nil {
		t.Fatalf("cellgraph %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestCLI_ImportEditLintExport(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "flow.json")
	script := filepath.Join(dir, "flow.py")
	if err := os.WriteFile(script, []byte("# %%\nx = 1\n# %%\ny = 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := cli(t, project, "show"); err == nil {
		t.Fatal("show without a project should fail")
	}

	out := mustCLI(t, project, "import", script)
	if !strings.Contains(out, "imported 2 cells") {
		t.Errorf("import output = %q", out)
	}
	if out := mustCLI(t, project, "show"); strings.Count(out, "undecided") != 2 {
		t.Errorf("show output = %q", out)
	}

	mustCLI(t, project, "role", "0", "rule")
	mustCLI(t, project, "role", "1", "rule")
	mustCLI(t, project, "name", "0", "load")
	mustCLI(t, project, "name", "1", "report")
	if out := mustCLI(t, project, "lint"); !strings.HasPrefix(out, `OK: workflow "flow" is valid (2 rules`) {
		t.Errorf("lint output = %q", out)
	}

	dest := filepath.Join(dir, "out")
	mustCLI(t, project, "export", dest)
	for _, name := range []string{"Snakefile", "workflow.dot", filepath.Join("scripts", "load.py")} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("export did not write %s: %v", name, err)
		}
	}
	if out := mustCLI(t, project, "lint", filepath.Join(dest, "workflow.dot")); !strings.HasPrefix(out, "OK:") {
		t.Errorf("lint of exported DOT = %q", out)
	}

	mustCLI(t, project, "undo")
	if _, err := cli(t, project, "lint"); err == nil || !strings.Contains(err.Error(), "rule has no name") {
		t.Errorf("lint after undo err = %v", err)
	}
	if _, err := cli(t, project, "export", filepath.Join(dir, "again")); err == nil {
		t.Error("export of an invalid workflow should need --force")
	}
	mustCLI(t, project, "export", "--force", filepath.Join(dir, "again"))
}

func TestCLI_RejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "p.json")
	script := filepath.Join(dir, "p.py")
	if err := os.WriteFile(script, []byte("x = 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	mustCLI(t, project, "import", script)

	tests := [][]string{
		{"role", "0", "boss"},
		{"role", "x", "rule"},
		{"merge", "0", "3"},
		{"hoist", "everything"},
		{"dependency", "swap", "0", "x"},
		{"graph", "--format", "svg"},
		{"suggest"},
		{"agent", "do", "something"},
	}
	for _, args := range tests {
		if _, err := cli(t, project, args...); err == nil {
			t.Errorf("cellgraph %s: expected an error", strings.Join(args, " "))
		}
	}
}
