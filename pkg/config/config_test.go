package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/cellgraph/pkg/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CELLGRAPH_MODEL", "CELLGRAPH_HISTORY", "CELLGRAPH_TELEMETRY", "CELLGRAPH_PROJECT", "CELLGRAPH_CONFIG"} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

func write(t *testing.T, name, body string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(body), 0o600))
	abs, err := filepath.Abs(name)
	require.NoError(t, err)
	return abs
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, &config.Config{Model: config.DefaultModel, History: 32, Project: "cellgraph.json"}, cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	write(t, config.DefaultFile, "model: openai:gpt-4o\nhistory: 8\ntelemetry: true\n")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o", cfg.Model)
	assert.Equal(t, 8, cfg.History)
	assert.True(t, cfg.Telemetry)

	t.Setenv("CELLGRAPH_HISTORY", "4")
	t.Setenv("CELLGRAPH_PROJECT", "s3://bucket/nb.json")
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.History)
	assert.Equal(t, "s3://bucket/nb.json", cfg.Project)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("CELLGRAPH_MODEL")
	write(t, ".env", "CELLGRAPH_MODEL=gemini:gemini-2.0-flash\n")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini:gemini-2.0-flash", cfg.Model)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "unknown key", file: "modle: x\n"},
		{name: "bad yaml", file: "history: [\n"},
		{name: "history too small", file: "history: 1\n"},
		{name: "bad env history", env: map[string]string{"CELLGRAPH_HISTORY": "many"}},
		{name: "bad env telemetry", env: map[string]string{"CELLGRAPH_TELEMETRY": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if tt.file != "" {
				write(t, config.DefaultFile, tt.file)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load("")
			assert.Error(t, err)
		})
	}

	clearEnv(t)
	_, err := config.Load("missing.yaml")
	assert.Error(t, err, "an explicit file must exist")
}
