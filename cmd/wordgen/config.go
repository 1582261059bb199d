package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/wordgen/internal/generate"
)

// Config represents the wordgen configuration file (~/.config/wordgen/config.yaml).
// Scalar fields are pointers so we can distinguish "not set" from zero values.
type Config struct {
	Corpus      string   `yaml:"corpus"`
	Checkpoint  string   `yaml:"checkpoint"`
	Output      string   `yaml:"output"`
	Words       *int64   `yaml:"words"`
	Seed        *int64   `yaml:"seed"`
	Cuda        *bool    `yaml:"cuda"`
	Temperature *float64 `yaml:"temperature"`
	LogInterval *int64   `yaml:"log_interval"`
	Prompt      string   `yaml:"prompt"`
	Progress    *bool    `yaml:"progress"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	MaxWords      *int64 `yaml:"max_words"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "wordgen", "config.yaml")
}

// LoadConfig reads the config file at path, or the default location when
// path is empty. A missing default file yields a zero Config; a missing
// explicit file is an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
		if path == "" {
			return Config{}, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyGenerateConfig applies config file defaults to cfg when the
// corresponding CLI flag (or its environment variable) was not set.
func applyGenerateConfig(c *cli.Command, fc Config, cfg *generate.Config, progress *bool) {
	if fc.Corpus != "" && !c.IsSet("data") {
		cfg.CorpusPath = fc.Corpus
	}
	if fc.Checkpoint != "" && !c.IsSet("checkpoint") {
		cfg.CheckpointPath = fc.Checkpoint
	}
	if fc.Output != "" && !c.IsSet("outf") {
		cfg.OutputPath = fc.Output
	}
	if fc.Words != nil && !c.IsSet("words") {
		cfg.WordCount = int(*fc.Words)
	}
	if fc.Seed != nil && !c.IsSet("seed") {
		cfg.Seed = *fc.Seed
	}
	if fc.Cuda != nil && !c.IsSet("cuda") {
		cfg.UseAccelerator = *fc.Cuda
	}
	if fc.Temperature != nil && !c.IsSet("temperature") {
		cfg.Temperature = *fc.Temperature
	}
	if fc.LogInterval != nil && !c.IsSet("log-interval") {
		cfg.LogInterval = int(*fc.LogInterval)
	}
	if fc.Prompt != "" && !c.IsSet("input") {
		cfg.Prompt = fc.Prompt
	}
	if fc.Progress != nil && !c.IsSet("progress") {
		*progress = *fc.Progress
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, fc Config, addr *string, maxWords *int64) {
	if fc.ServerAddress != "" && !c.IsSet("addr") {
		*addr = fc.ServerAddress
	}
	if fc.MaxWords != nil && !c.IsSet("max-words") {
		*maxWords = *fc.MaxWords
	}
}

func applyLogConfig(c *cli.Command, fc Config) {
	if fc.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = fc.LogLevel
	}
	if fc.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = fc.LogFormat
	}
}
