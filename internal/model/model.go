// Package model implements the word-level language models that drive
// generation. Every model exposes the same Step capability; whether it carries
// a recurrent hidden state or re-reads a growing token sequence is decided
// once, when the checkpoint is loaded.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes how a model carries context between steps.
type Kind int

const (
	// Recurrent models consume one token per step and carry a hidden state.
	Recurrent Kind = iota
	// Sequence models re-read the full token sequence every step.
	Sequence
)

func (k Kind) String() string {
	switch k {
	case Recurrent:
		return "recurrent"
	case Sequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Model is the capability the generation loop depends on.
type Model interface {
	// Kind reports the variant selected at load time.
	Kind() Kind
	// VocabSize is the length of every score vector returned by Step.
	VocabSize() int
	// Step feeds token as the newest input and returns scores over the next
	// token. The returned slice is only valid until the next call.
	Step(token int) ([]float32, error)
	// Reset discards all context (hidden state or sequence).
	Reset()
}

// Architecture type tags stored in checkpoint metadata.
const (
	TypeRNNTanh     = "RNN_TANH"
	TypeRNNReLU     = "RNN_RELU"
	TypeLSTM        = "LSTM"
	TypeGRU         = "GRU"
	TypeTransformer = "Transformer"
)

var (
	ErrUnknownModelType = errors.New("model: unknown model type")
	ErrTokenOutOfRange  = errors.New("model: token out of range")
)

// Config describes a checkpoint's architecture. Field names follow the
// metadata keys written next to the weights.
type Config struct {
	Type    string
	NToken  int
	NInp    int
	NHid    int
	NLayers int
	// NHead is only used by Transformer checkpoints.
	NHead int
	// Causal applies a causal attention mask in Transformer checkpoints.
	Causal bool
}

// Kind returns the variant implied by the type tag.
func (c Config) Kind() (Kind, error) {
	switch c.Type {
	case TypeRNNTanh, TypeRNNReLU, TypeLSTM, TypeGRU:
		return Recurrent, nil
	case TypeTransformer:
		return Sequence, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownModelType, c.Type)
	}
}

// Validate checks dimensions for consistency.
func (c Config) Validate() error {
	if _, err := c.Kind(); err != nil {
		return err
	}
	if c.NToken <= 0 || c.NInp <= 0 || c.NHid <= 0 || c.NLayers <= 0 {
		return fmt.Errorf("model: dimensions must be positive (ntoken=%d ninp=%d nhid=%d nlayers=%d)",
			c.NToken, c.NInp, c.NHid, c.NLayers)
	}
	if c.Type == TypeTransformer {
		if c.NHead <= 0 || c.NInp%c.NHead != 0 {
			return fmt.Errorf("model: ninp %d is not divisible by nhead %d", c.NInp, c.NHead)
		}
	}
	return nil
}

// Metadata encodes the config as checkpoint metadata.
func (c Config) Metadata() map[string]string {
	md := map[string]string{
		"model_type": c.Type,
		"ntoken":     strconv.Itoa(c.NToken),
		"ninp":       strconv.Itoa(c.NInp),
		"nhid":       strconv.Itoa(c.NHid),
		"nlayers":    strconv.Itoa(c.NLayers),
	}
	if c.Type == TypeTransformer {
		md["nhead"] = strconv.Itoa(c.NHead)
		md["causal_mask"] = strconv.FormatBool(c.Causal)
	}
	return md
}

// ConfigFromMetadata parses the metadata written by Config.Metadata.
func ConfigFromMetadata(md map[string]string) (Config, error) {
	var cfg Config
	cfg.Type = strings.TrimSpace(md["model_type"])
	if cfg.Type == "" {
		return cfg, fmt.Errorf("%w: model_type missing from checkpoint metadata", ErrUnknownModelType)
	}
	ints := []struct {
		key string
		dst *int
		opt bool
	}{
		{"ntoken", &cfg.NToken, false},
		{"ninp", &cfg.NInp, false},
		{"nhid", &cfg.NHid, false},
		{"nlayers", &cfg.NLayers, false},
		{"nhead", &cfg.NHead, cfg.Type != TypeTransformer},
	}
	for _, f := range ints {
		raw, ok := md[f.key]
		if !ok {
			if f.opt {
				continue
			}
			return cfg, fmt.Errorf("model: metadata key %q missing", f.key)
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return cfg, fmt.Errorf("model: metadata %s: %w", f.key, err)
		}
		*f.dst = v
	}
	if raw, ok := md["causal_mask"]; ok {
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return cfg, fmt.Errorf("model: metadata causal_mask: %w", err)
		}
		cfg.Causal = b
	}
	return cfg, cfg.Validate()
}

func checkToken(tok, ntoken int) error {
	if tok < 0 || tok >= ntoken {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrTokenOutOfRange, tok, ntoken)
	}
	return nil
}
