// Package config resolves cellgraph CLI settings from .env, an optional YAML
// file and the environment, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel   = "anthropic:claude-sonnet-4-6"
	DefaultHistory = 32
	DefaultProject = "cellgraph.json"
	DefaultFile    = "cellgraph.yaml"
)

type Config struct {
	Model     string `yaml:"model"`
	History   int    `yaml:"history"`
	Telemetry bool   `yaml:"telemetry"`
	Project   string `yaml:"project"`
}

// Load reads settings. A missing .env or YAML file is not an error; an
// explicitly named YAML file that cannot be read is.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{Model: DefaultModel, History: DefaultHistory, Project: DefaultProject}
	explicit := path != ""
	if !explicit {
		path = firstNonEmpty(strings.TrimSpace(os.Getenv("CELLGRAPH_CONFIG")), DefaultFile)
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if cfg.History < 2 {
		return nil, fmt.Errorf("config: history must be at least 2, got %d", cfg.History)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("CELLGRAPH_MODEL")), c.Model)
	c.Project = firstNonEmpty(strings.TrimSpace(os.Getenv("CELLGRAPH_PROJECT")), c.Project)
	if raw := strings.TrimSpace(os.Getenv("CELLGRAPH_HISTORY")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: CELLGRAPH_HISTORY: %w", err)
		}
		c.History = n
	}
	if raw := strings.TrimSpace(os.Getenv("CELLGRAPH_TELEMETRY")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: CELLGRAPH_TELEMETRY: %w", err)
		}
		c.Telemetry = v
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
