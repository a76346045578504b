// Package config loads the pipeline definition file and compiles it
// into executable stage definitions.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFile = ".conveyor.yml"
	tomlConfigFile    = ".conveyor.toml"
)

// Config is the top-level Conveyor configuration.
type Config struct {
	Parallelism int           `yaml:"parallelism" toml:"parallelism"`
	FailFast    bool          `yaml:"fail_fast" toml:"fail_fast"`
	WorkDir     string        `yaml:"workdir" toml:"workdir"`
	Secrets     SecretsConfig `yaml:"secrets" toml:"secrets"`
	Report      ReportConfig  `yaml:"report" toml:"report"`
	Badge       BadgeConfig   `yaml:"badge" toml:"badge"`
	Stages      []StageConfig `yaml:"stages" toml:"stages"`
}

// SecretsConfig controls credential resolution.
type SecretsConfig struct {
	EnvPrefix string `yaml:"env_prefix" toml:"env_prefix"`
	Dotenv    string `yaml:"dotenv" toml:"dotenv"`
}

// ReportConfig controls the report sink.
type ReportConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// BadgeConfig controls status badge generation.
type BadgeConfig struct {
	Enabled  bool    `yaml:"enabled" toml:"enabled"`
	Path     string  `yaml:"path" toml:"path"`
	Font     string  `yaml:"font" toml:"font"` // optional TTF/OTF path
	FontName string  `yaml:"font_name" toml:"font_name"`
	FontSize float64 `yaml:"font_size" toml:"font_size"`
}

// StageConfig is one stage definition as written in the config file.
type StageConfig struct {
	ID          string         `yaml:"id" toml:"id"`
	Action      string         `yaml:"action" toml:"action"`
	Needs       []string       `yaml:"needs" toml:"needs"`
	Required    *bool          `yaml:"required" toml:"required"` // nil means true
	Timeout     string         `yaml:"timeout" toml:"timeout"`
	Retry       RetryConfig    `yaml:"retry" toml:"retry"`
	Credentials []string       `yaml:"credentials" toml:"credentials"`
	Inputs      []string       `yaml:"inputs" toml:"inputs"` // "stage/name"
	Outputs     []OutputConfig `yaml:"outputs" toml:"outputs"`
	With        map[string]any `yaml:"with" toml:"with"`
}

// RetryConfig is the per-stage retry policy.
type RetryConfig struct {
	Attempts    int    `yaml:"attempts" toml:"attempts"`
	Backoff     string `yaml:"backoff" toml:"backoff"`
	Exponential bool   `yaml:"exponential" toml:"exponential"`
}

// OutputConfig declares one stage output artifact.
type OutputConfig struct {
	Name string `yaml:"name" toml:"name"`
	Kind string `yaml:"kind" toml:"kind"`
}

// Load reads configuration from path. An empty path tries
// .conveyor.yml then .conveyor.toml. A missing file is an error: a
// pipeline cannot run without stages.
func Load(path string) (*Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		} else if _, err := os.Stat(tomlConfigFile); err == nil {
			path = tomlConfigFile
		} else {
			return nil, fmt.Errorf("config: no %s or %s found", defaultConfigFile, tomlConfigFile)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: %s does not exist", path)
		}
		return nil, err
	}

	cfg := defaults()
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Parallelism: 4,
		WorkDir:     ".",
		Secrets: SecretsConfig{
			EnvPrefix: "CONVEYOR_SECRET_",
		},
		Report: ReportConfig{
			Path: "conveyor.db",
		},
		Badge: BadgeConfig{
			Path:     "pipeline-status.svg",
			FontName: "Verdana",
			FontSize: 11,
		},
	}
}
