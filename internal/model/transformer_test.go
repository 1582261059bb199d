package model

import (
	"fmt"
	"math"
	"testing"

	"github.com/samcharles93/wordgen/internal/safetensors"
)

var (
	handEncoder = [][]float64{
		{0.9, -0.3, 0.2, 0.5},
		{-0.4, 0.8, -0.6, 0.1},
		{0.3, 0.3, -0.9, -0.7},
	}
	handDecoder = [][]float64{
		{1.0, -0.5, 0.25, 0.0},
		{-0.75, 0.5, 0.0, 1.0},
		{0.2, 0.2, -1.0, 0.4},
	}
	handDecoderBias = []float64{0.1, -0.2, 0.3}
)

// handTransformer builds a checkpoint whose attention projections are
// identities and whose feed-forward blocks are zero, so every encoder layer
// reduces to LN(LN(x + attn(x))).
func handTransformer(t *testing.T, heads, layers int, causal bool) *Transformer {
	t.Helper()
	const d, nhid = 4, 2
	ntok := len(handEncoder)
	cfg := Config{Type: TypeTransformer, NToken: ntok, NInp: d, NHid: nhid, NLayers: layers, NHead: heads, Causal: causal}

	flat := func(rows [][]float64) []float32 {
		var out []float32
		for _, r := range rows {
			for _, v := range r {
				out = append(out, float32(v))
			}
		}
		return out
	}
	identity := func(n, blocks int) []float32 {
		out := make([]float32, blocks*n*n)
		for b := 0; b < blocks; b++ {
			for i := 0; i < n; i++ {
				out[b*n*n+i*n+i] = 1
			}
		}
		return out
	}
	fill := func(n int, v float32) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = v
		}
		return out
	}

	ts := []safetensors.Tensor{{Name: "encoder.weight", Shape: []int{ntok, d}, Data: flat(handEncoder)}}
	for l := 0; l < layers; l++ {
		p := fmt.Sprintf("transformer_encoder.layers.%d.", l)
		ts = append(ts,
			safetensors.Tensor{Name: p + "self_attn.in_proj_weight", Shape: []int{3 * d, d}, Data: identity(d, 3)},
			safetensors.Tensor{Name: p + "self_attn.in_proj_bias", Shape: []int{3 * d}, Data: fill(3*d, 0)},
			safetensors.Tensor{Name: p + "self_attn.out_proj.weight", Shape: []int{d, d}, Data: identity(d, 1)},
			safetensors.Tensor{Name: p + "self_attn.out_proj.bias", Shape: []int{d}, Data: fill(d, 0)},
			safetensors.Tensor{Name: p + "linear1.weight", Shape: []int{nhid, d}, Data: fill(nhid*d, 0)},
			safetensors.Tensor{Name: p + "linear1.bias", Shape: []int{nhid}, Data: fill(nhid, 0)},
			safetensors.Tensor{Name: p + "linear2.weight", Shape: []int{d, nhid}, Data: fill(d*nhid, 0)},
			safetensors.Tensor{Name: p + "linear2.bias", Shape: []int{d}, Data: fill(d, 0)},
			safetensors.Tensor{Name: p + "norm1.weight", Shape: []int{d}, Data: fill(d, 1)},
			safetensors.Tensor{Name: p + "norm1.bias", Shape: []int{d}, Data: fill(d, 0)},
			safetensors.Tensor{Name: p + "norm2.weight", Shape: []int{d}, Data: fill(d, 1)},
			safetensors.Tensor{Name: p + "norm2.bias", Shape: []int{d}, Data: fill(d, 0)},
		)
	}
	bias := make([]float32, ntok)
	for i, v := range handDecoderBias {
		bias[i] = float32(v)
	}
	ts = append(ts,
		safetensors.Tensor{Name: "decoder.weight", Shape: []int{ntok, d}, Data: flat(handDecoder)},
		safetensors.Tensor{Name: "decoder.bias", Shape: []int{ntok}, Data: bias},
	)
	m, err := FromTensors(cfg, ts)
	if err != nil {
		t.Fatalf("FromTensors: %v", err)
	}
	return m.(*Transformer)
}

func layerNorm64(x []float64) []float64 {
	var mean, variance float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	for _, v := range x {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(x))
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - mean) / math.Sqrt(variance+layerNormEps)
	}
	return out
}

// handScores evaluates the hand-built encoder in float64 and returns the
// log-probabilities for the position after the last token.
func handScores(tokens []int, heads, layers int, causal bool) []float64 {
	d := len(handEncoder[0])
	hd := d / heads
	n := len(tokens)

	xs := make([][]float64, n)
	for pos, tok := range tokens {
		x := make([]float64, d)
		for j := range x {
			angle := float64(pos) / math.Pow(10000, float64(j-j%2)/float64(d))
			pe := math.Cos(angle)
			if j%2 == 0 {
				pe = math.Sin(angle)
			}
			x[j] = handEncoder[tok][j]*math.Sqrt(float64(d)) + pe
		}
		xs[pos] = x
	}

	for l := 0; l < layers; l++ {
		next := make([][]float64, n)
		for i := 0; i < n; i++ {
			limit := n
			if causal {
				limit = i + 1
			}
			y := append([]float64(nil), xs[i]...)
			for h := 0; h < heads; h++ {
				lo, hi := h*hd, (h+1)*hd
				w := make([]float64, limit)
				maxW := math.Inf(-1)
				for j := 0; j < limit; j++ {
					for e := lo; e < hi; e++ {
						w[j] += xs[i][e] * xs[j][e]
					}
					w[j] /= math.Sqrt(float64(hd))
					maxW = math.Max(maxW, w[j])
				}
				var sum float64
				for j := range w {
					w[j] = math.Exp(w[j] - maxW)
					sum += w[j]
				}
				for j := range w {
					for e := lo; e < hi; e++ {
						y[e] += w[j] / sum * xs[j][e]
					}
				}
			}
			next[i] = layerNorm64(layerNorm64(y))
		}
		xs = next
	}

	last := xs[n-1]
	logits := make([]float64, len(handDecoder))
	var lse float64
	for k, row := range handDecoder {
		logits[k] = handDecoderBias[k]
		for j, v := range row {
			logits[k] += v * last[j]
		}
		lse += math.Exp(logits[k])
	}
	lse = math.Log(lse)
	for k := range logits {
		logits[k] -= lse
	}
	return logits
}

func TestTransformerMatchesHandComputed(t *testing.T) {
	t.Parallel()
	tokens := []int{2, 0, 1, 1}
	cases := []struct {
		heads, layers int
		causal        bool
	}{
		{1, 1, false},
		{2, 1, false},
		{1, 2, false},
		{2, 2, true},
	}
	for _, tc := range cases {
		name := fmt.Sprintf("heads=%d/layers=%d/causal=%v", tc.heads, tc.layers, tc.causal)
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			m := handTransformer(t, tc.heads, tc.layers, tc.causal)
			for k, tok := range tokens {
				got, err := m.Step(tok)
				if err != nil {
					t.Fatalf("Step: %v", err)
				}
				want := handScores(tokens[:k+1], tc.heads, tc.layers, tc.causal)
				for i := range want {
					if math.Abs(float64(got[i])-want[i]) > 1e-4 {
						t.Fatalf("step %d index %d: got %v want %v", k, i, got[i], want[i])
					}
				}
			}
		})
	}
}

// With a causal mask, earlier rows never see later tokens. The last row is
// unaffected either way, so the mask only shows once a second layer reads
// the earlier rows.
func TestTransformerCausalMask(t *testing.T) {
	t.Parallel()
	tokens := []int{1, 2, 0}

	run := func(layers int, causal bool) [][]float32 {
		m := handTransformer(t, 2, layers, causal)
		var out [][]float32
		for _, tok := range tokens {
			s, err := m.Step(tok)
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			out = append(out, append([]float32(nil), s...))
		}
		return out
	}
	differs := func(a, b []float32) bool {
		for i := range a {
			if math.Abs(float64(a[i]-b[i])) > 1e-6 {
				return true
			}
		}
		return false
	}

	masked, open := run(2, true), run(2, false)
	if differs(masked[0], open[0]) {
		t.Fatal("single-token scores depend on the mask")
	}
	if !differs(masked[2], open[2]) {
		t.Fatal("two-layer scores ignore the causal mask")
	}

	shallowMasked, shallowOpen := run(1, true), run(1, false)
	for k := range tokens {
		if differs(shallowMasked[k], shallowOpen[k]) {
			t.Fatalf("step %d: one-layer scores depend on the mask", k)
		}
	}
}
