// Package config loads zenlogd's YAML runtime configuration: the log
// severity and the named pipelines to assemble.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"zenlogd/internal/registry"
)

// PipelineConfig is the YAML shape of one pipeline: its sources and sinks.
type PipelineConfig struct {
	Sources []registry.ComponentSpec `yaml:"sources"`
	Outputs []registry.ComponentSpec `yaml:"outputs"`
}

// RuntimeConfig is the top-level YAML document.
type RuntimeConfig struct {
	Severity  int                       `yaml:"severity"`
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

// defaultConfig is what an absent file falls back to: a quiet
// runtime with no pipelines, matching the warn-and-continue style the
// original file-pipeline loader uses for optional configuration.
func defaultConfig() *RuntimeConfig {
	return &RuntimeConfig{Severity: 2, Pipelines: map[string]PipelineConfig{}}
}

// LoadConfig reads and parses the YAML document at path. A missing file is
// not fatal — it falls back to an empty runtime at Info severity — but a
// file that exists and fails to parse is, since a malformed config can't be
// safely guessed at.
func LoadConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
