package model

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/samcharles93/wordgen/internal/safetensors"
)

func smallConfig(typ string) Config {
	cfg := Config{Type: typ, NToken: 11, NInp: 6, NHid: 8, NLayers: 2}
	if typ == TypeTransformer {
		cfg.NHead = 2
	}
	return cfg
}

var allTypes = []string{TypeRNNTanh, TypeRNNReLU, TypeLSTM, TypeGRU, TypeTransformer}

func TestStepProducesLogProbabilities(t *testing.T) {
	t.Parallel()
	for _, typ := range allTypes {
		t.Run(typ, func(t *testing.T) {
			t.Parallel()
			cfg := smallConfig(typ)
			m, err := FromTensors(cfg, RandomTensors(cfg, 3))
			if err != nil {
				t.Fatalf("FromTensors: %v", err)
			}
			wantKind := Recurrent
			if typ == TypeTransformer {
				wantKind = Sequence
			}
			if m.Kind() != wantKind {
				t.Fatalf("Kind = %v, want %v", m.Kind(), wantKind)
			}
			for _, tok := range []int{0, 5, 10} {
				scores, err := m.Step(tok)
				if err != nil {
					t.Fatalf("Step(%d): %v", tok, err)
				}
				if len(scores) != cfg.NToken {
					t.Fatalf("len(scores) = %d, want %d", len(scores), cfg.NToken)
				}
				var sum float64
				for _, s := range scores {
					if math.IsNaN(float64(s)) || s > 1e-5 {
						t.Fatalf("score %v is not a log-probability", s)
					}
					sum += math.Exp(float64(s))
				}
				if math.Abs(sum-1) > 1e-3 {
					t.Fatalf("probabilities sum to %f", sum)
				}
			}
		})
	}
}

// Reset must make a model replay the same scores for the same inputs.
func TestResetReplays(t *testing.T) {
	t.Parallel()
	for _, typ := range allTypes {
		t.Run(typ, func(t *testing.T) {
			t.Parallel()
			cfg := smallConfig(typ)
			m, err := FromTensors(cfg, RandomTensors(cfg, 9))
			if err != nil {
				t.Fatalf("FromTensors: %v", err)
			}
			run := func() []float32 {
				var last []float32
				for _, tok := range []int{1, 4, 4, 2} {
					s, err := m.Step(tok)
					if err != nil {
						t.Fatalf("Step: %v", err)
					}
					last = append(last[:0], s...)
				}
				return last
			}
			first := run()
			m.Reset()
			second := run()
			for i := range first {
				if first[i] != second[i] {
					t.Fatalf("index %d: %v after reset, want %v", i, second[i], first[i])
				}
			}
		})
	}
}

// Context must matter: the same token after different histories gives
// different scores.
func TestStepCarriesContext(t *testing.T) {
	t.Parallel()
	for _, typ := range allTypes {
		t.Run(typ, func(t *testing.T) {
			t.Parallel()
			cfg := smallConfig(typ)
			ts := RandomTensors(cfg, 21)
			a, _ := FromTensors(cfg, ts)
			b, _ := FromTensors(cfg, ts)
			_, _ = a.Step(1)
			_, _ = b.Step(7)
			sa, _ := a.Step(3)
			sb, _ := b.Step(3)
			same := true
			for i := range sa {
				if sa[i] != sb[i] {
					same = false
					break
				}
			}
			if same {
				t.Fatal("scores ignore the previous token")
			}
		})
	}
}

func TestStepRejectsOutOfRangeToken(t *testing.T) {
	t.Parallel()
	cfg := smallConfig(TypeLSTM)
	m, err := FromTensors(cfg, RandomTensors(cfg, 1))
	if err != nil {
		t.Fatalf("FromTensors: %v", err)
	}
	for _, tok := range []int{-1, cfg.NToken} {
		if _, err := m.Step(tok); !errors.Is(err, ErrTokenOutOfRange) {
			t.Fatalf("Step(%d): expected ErrTokenOutOfRange, got %v", tok, err)
		}
	}
}

// A single-layer tanh RNN with hand-picked weights, checked against the
// closed form log_softmax(D * tanh(Wih*e + Whh*h)).
func TestRNNTanhMatchesHandComputed(t *testing.T) {
	t.Parallel()
	cfg := Config{Type: TypeRNNTanh, NToken: 2, NInp: 1, NHid: 1, NLayers: 1}
	ts := []safetensors.Tensor{
		{Name: "encoder.weight", Shape: []int{2, 1}, Data: []float32{1, -1}},
		{Name: "rnn.weight_ih_l0", Shape: []int{1, 1}, Data: []float32{0.5}},
		{Name: "rnn.weight_hh_l0", Shape: []int{1, 1}, Data: []float32{2}},
		{Name: "rnn.bias_ih_l0", Shape: []int{1}, Data: []float32{0}},
		{Name: "rnn.bias_hh_l0", Shape: []int{1}, Data: []float32{0}},
		{Name: "decoder.weight", Shape: []int{2, 1}, Data: []float32{1, -1}},
		{Name: "decoder.bias", Shape: []int{2}, Data: []float32{0, 0}},
	}
	m, err := FromTensors(cfg, ts)
	if err != nil {
		t.Fatalf("FromTensors: %v", err)
	}

	h := 0.0
	for _, tok := range []int{0, 1, 1} {
		e := 1.0
		if tok == 1 {
			e = -1
		}
		h = math.Tanh(0.5*e + 2*h)
		logits := []float64{h, -h}
		lse := math.Log(math.Exp(logits[0]) + math.Exp(logits[1]))

		scores, err := m.Step(tok)
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		for i := range logits {
			if math.Abs(float64(scores[i])-(logits[i]-lse)) > 1e-5 {
				t.Fatalf("token %d index %d: got %v want %v", tok, i, scores[i], logits[i]-lse)
			}
		}
	}
}

func TestTransformerSequenceGrows(t *testing.T) {
	t.Parallel()
	cfg := smallConfig(TypeTransformer)
	m, err := FromTensors(cfg, RandomTensors(cfg, 4))
	if err != nil {
		t.Fatalf("FromTensors: %v", err)
	}
	tr := m.(*Transformer)
	for i := 1; i <= 3; i++ {
		if _, err := tr.Step(i); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if tr.Len() != i {
			t.Fatalf("Len = %d, want %d", tr.Len(), i)
		}
	}
	tr.Reset()
	if tr.Len() != 0 {
		t.Fatalf("Len after Reset = %d", tr.Len())
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	t.Parallel()
	for _, typ := range []string{TypeGRU, TypeTransformer} {
		t.Run(typ, func(t *testing.T) {
			t.Parallel()
			cfg := smallConfig(typ)
			cfg.Causal = typ == TypeTransformer
			ts := RandomTensors(cfg, 5)
			path := filepath.Join(t.TempDir(), "model.safetensors")
			if err := WriteCheckpoint(path, cfg, ts); err != nil {
				t.Fatalf("WriteCheckpoint: %v", err)
			}
			ckpt, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if ckpt.Config != cfg {
				t.Fatalf("config = %+v, want %+v", ckpt.Config, cfg)
			}
			if len(ckpt.DigestString()) != 16 {
				t.Fatalf("digest %q", ckpt.DigestString())
			}

			mem, _ := FromTensors(cfg, ts)
			a, err := ckpt.Model.Step(2)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			b, _ := mem.Step(2)
			for i := range a {
				if a[i] != b[i] {
					t.Fatalf("loaded model differs at %d: %v vs %v", i, a[i], b[i])
				}
			}

			again, err := Load(path)
			if err != nil {
				t.Fatalf("Load again: %v", err)
			}
			if again.Digest != ckpt.Digest {
				t.Fatal("digest is not stable")
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.safetensors")); err == nil {
		t.Fatal("expected error for missing file")
	}

	unknown := filepath.Join(dir, "unknown.safetensors")
	if err := safetensors.WriteFile(unknown, nil, map[string]string{
		"model_type": "Mamba", "ntoken": "2", "ninp": "2", "nhid": "2", "nlayers": "1",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(unknown); !errors.Is(err, ErrUnknownModelType) {
		t.Fatalf("expected ErrUnknownModelType, got %v", err)
	}

	cfg := smallConfig(TypeLSTM)
	ts := RandomTensors(cfg, 1)
	short := filepath.Join(dir, "short.safetensors")
	if err := WriteCheckpoint(short, cfg, ts[:len(ts)-1]); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(short); err == nil {
		t.Fatal("expected error for missing decoder.bias")
	}
}

func TestConfigFromMetadata(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		md   map[string]string
		ok   bool
	}{
		{"lstm", map[string]string{"model_type": "LSTM", "ntoken": "5", "ninp": "3", "nhid": "4", "nlayers": "2"}, true},
		{"missing type", map[string]string{"ntoken": "5", "ninp": "3", "nhid": "4", "nlayers": "2"}, false},
		{"bad int", map[string]string{"model_type": "GRU", "ntoken": "five", "ninp": "3", "nhid": "4", "nlayers": "2"}, false},
		{"transformer needs nhead", map[string]string{"model_type": "Transformer", "ntoken": "5", "ninp": "4", "nhid": "4", "nlayers": "1"}, false},
		{"nhead must divide ninp", map[string]string{"model_type": "Transformer", "ntoken": "5", "ninp": "4", "nhid": "4", "nlayers": "1", "nhead": "3"}, false},
		{"zero layers", map[string]string{"model_type": "GRU", "ntoken": "5", "ninp": "3", "nhid": "4", "nlayers": "0"}, false},
	}
	for _, tc := range cases {
		_, err := ConfigFromMetadata(tc.md)
		if (err == nil) != tc.ok {
			t.Errorf("%s: err = %v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}
