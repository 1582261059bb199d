package generate

import (
	"errors"
	"fmt"

	"github.com/samcharles93/wordgen/internal/logits"
)

// ErrInvalidConfig marks a configuration that must be rejected before any
// file is opened or model loaded.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the options of a generation run.
type Config struct {
	CorpusPath     string
	CheckpointPath string
	OutputPath     string
	WordCount      int
	Seed           int64
	UseAccelerator bool
	Temperature    float64
	LogInterval    int
	Prompt         string
}

// DefaultConfig returns the defaults used when neither flags, environment
// nor config file provide a value.
func DefaultConfig() Config {
	return Config{
		CorpusPath:     "./data/wikitext-2",
		CheckpointPath: "./model.safetensors",
		OutputPath:     "generated.txt",
		WordCount:      1000,
		Seed:           1111,
		Temperature:    1.0,
		LogInterval:    100,
	}
}

// Validate checks the numeric options.
func (c Config) Validate() error {
	if err := logits.CheckTemperature(c.Temperature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.WordCount <= 0 {
		return fmt.Errorf("%w: number of words must be positive, got %d", ErrInvalidConfig, c.WordCount)
	}
	if c.LogInterval <= 0 {
		return fmt.Errorf("%w: log interval must be positive, got %d", ErrInvalidConfig, c.LogInterval)
	}
	return nil
}
