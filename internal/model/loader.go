package model

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/samcharles93/wordgen/internal/safetensors"
	"github.com/samcharles93/wordgen/internal/tensor"
)

// Checkpoint is a loaded model together with where it came from.
type Checkpoint struct {
	Path   string
	Digest uint64
	Config Config
	Model  Model
}

// DigestString formats the checkpoint digest for logs and API responses.
func (c *Checkpoint) DigestString() string {
	return fmt.Sprintf("%016x", c.Digest)
}

// Load reads a safetensors checkpoint and builds the model variant named by
// its model_type metadata.
func Load(path string) (*Checkpoint, error) {
	st, err := safetensors.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	cfg, err := ConfigFromMetadata(st.Metadata)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	m, err := build(cfg, weights{read: func(name string) ([]float32, []int, error) {
		data, info, err := st.ReadTensorF32(name)
		return data, info.Shape, err
	}})
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	digest, err := fileDigest(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: digest: %w", path, err)
	}
	return &Checkpoint{Path: path, Digest: digest, Config: cfg, Model: m}, nil
}

// FromTensors builds a model from in-memory tensors.
func FromTensors(cfg Config, ts []safetensors.Tensor) (Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	byName := make(map[string]safetensors.Tensor, len(ts))
	for _, t := range ts {
		byName[t.Name] = t
	}
	return build(cfg, weights{read: func(name string) ([]float32, []int, error) {
		t, ok := byName[name]
		if !ok {
			return nil, nil, fmt.Errorf("tensor not found: %s", name)
		}
		return t.Data, t.Shape, nil
	}})
}

// WriteCheckpoint stores tensors with cfg as metadata so Load can read them back.
func WriteCheckpoint(path string, cfg Config, ts []safetensors.Tensor) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return safetensors.WriteFile(path, ts, cfg.Metadata())
}

func build(cfg Config, w weights) (Model, error) {
	kind, err := cfg.Kind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case Sequence:
		return newTransformer(cfg, w)
	default:
		return newRNN(cfg, w)
	}
}

func fileDigest(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// weights reads named tensors and checks their shapes.
type weights struct {
	read func(name string) ([]float32, []int, error)
}

func (w weights) mat(name string, r, c int) (tensor.Mat, error) {
	data, shape, err := w.read(name)
	if err != nil {
		return tensor.Mat{}, err
	}
	if !slices.Equal(shape, []int{r, c}) {
		return tensor.Mat{}, fmt.Errorf("%s: shape %v, want [%d %d]", name, shape, r, c)
	}
	return tensor.NewMatFromData(r, c, data)
}

func (w weights) vec(name string, n int) ([]float32, error) {
	data, shape, err := w.read(name)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(shape, []int{n}) {
		return nil, fmt.Errorf("%s: shape %v, want [%d]", name, shape, n)
	}
	return data, nil
}
