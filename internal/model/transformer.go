package model

import (
	"fmt"
	"math"

	"github.com/samcharles93/wordgen/internal/tensor"
)

const layerNormEps = 1e-5

type encoderLayer struct {
	inProj  tensor.Mat // [3*d x d], rows q,k,v
	inBias  []float32
	outProj tensor.Mat
	outBias []float32
	lin1    tensor.Mat // [nhid x d]
	lin1b   []float32
	lin2    tensor.Mat // [d x nhid]
	lin2b   []float32
	norm1w  []float32
	norm1b  []float32
	norm2w  []float32
	norm2b  []float32
}

// Transformer is the sequence model: token embeddings scaled by sqrt(ninp)
// plus sinusoidal positions, post-norm encoder layers, and a linear decoder
// producing log-probabilities. It keeps the full token sequence and re-runs
// the encoder on every step, returning the scores of the last position.
type Transformer struct {
	cfg     Config
	encoder tensor.Mat
	layers  []encoderLayer
	decoder tensor.Mat
	decBias []float32

	tokens []int
	scores []float32
}

func newTransformer(cfg Config, w weights) (*Transformer, error) {
	d, nhid := cfg.NInp, cfg.NHid
	m := &Transformer{cfg: cfg}

	var err error
	if m.encoder, err = w.mat("encoder.weight", cfg.NToken, d); err != nil {
		return nil, err
	}
	for l := 0; l < cfg.NLayers; l++ {
		p := fmt.Sprintf("transformer_encoder.layers.%d.", l)
		var layer encoderLayer
		mats := []struct {
			name string
			dst  *tensor.Mat
			r, c int
		}{
			{"self_attn.in_proj_weight", &layer.inProj, 3 * d, d},
			{"self_attn.out_proj.weight", &layer.outProj, d, d},
			{"linear1.weight", &layer.lin1, nhid, d},
			{"linear2.weight", &layer.lin2, d, nhid},
		}
		for _, mt := range mats {
			if *mt.dst, err = w.mat(p+mt.name, mt.r, mt.c); err != nil {
				return nil, err
			}
		}
		vecs := []struct {
			name string
			dst  *[]float32
			n    int
		}{
			{"self_attn.in_proj_bias", &layer.inBias, 3 * d},
			{"self_attn.out_proj.bias", &layer.outBias, d},
			{"linear1.bias", &layer.lin1b, nhid},
			{"linear2.bias", &layer.lin2b, d},
			{"norm1.weight", &layer.norm1w, d},
			{"norm1.bias", &layer.norm1b, d},
			{"norm2.weight", &layer.norm2w, d},
			{"norm2.bias", &layer.norm2b, d},
		}
		for _, v := range vecs {
			if *v.dst, err = w.vec(p+v.name, v.n); err != nil {
				return nil, err
			}
		}
		m.layers = append(m.layers, layer)
	}
	if m.decoder, err = w.mat("decoder.weight", cfg.NToken, d); err != nil {
		return nil, err
	}
	if m.decBias, err = w.vec("decoder.bias", cfg.NToken); err != nil {
		return nil, err
	}
	m.scores = make([]float32, cfg.NToken)
	return m, nil
}

func (m *Transformer) Kind() Kind     { return Sequence }
func (m *Transformer) VocabSize() int { return m.cfg.NToken }
func (m *Transformer) Config() Config { return m.cfg }

// Reset forgets the token sequence.
func (m *Transformer) Reset() { m.tokens = m.tokens[:0] }

// Len returns the current sequence length.
func (m *Transformer) Len() int { return len(m.tokens) }

// Step appends token to the sequence and returns log-probabilities for the
// position after it.
func (m *Transformer) Step(token int) ([]float32, error) {
	if err := checkToken(token, m.cfg.NToken); err != nil {
		return nil, err
	}
	m.tokens = append(m.tokens, token)

	d := m.cfg.NInp
	n := len(m.tokens)
	scale := float32(math.Sqrt(float64(d)))
	xs := make([][]float32, n)
	for pos, tok := range m.tokens {
		x := make([]float32, d)
		m.encoder.RowTo(x, tok)
		tensor.Scale(x, scale)
		addPositional(x, pos)
		xs[pos] = x
	}

	for l := range m.layers {
		// Only the last position feeds the decoder, so the final layer
		// skips the other rows.
		from := 0
		if l == len(m.layers)-1 {
			from = n - 1
		}
		xs = m.encodeLayer(&m.layers[l], xs, from)
	}

	tensor.Linear(m.scores, &m.decoder, xs[n-1], m.decBias)
	tensor.LogSoftmax(m.scores)
	return m.scores, nil
}

// encodeLayer runs one post-norm encoder layer and returns updated rows
// from..n-1 (earlier rows are left untouched).
func (m *Transformer) encodeLayer(layer *encoderLayer, xs [][]float32, from int) [][]float32 {
	d := m.cfg.NInp
	heads := m.cfg.NHead
	hd := d / heads
	n := len(xs)

	qkv := make([][]float32, n)
	for pos := range xs {
		qkv[pos] = make([]float32, 3*d)
		tensor.Linear(qkv[pos], &layer.inProj, xs[pos], layer.inBias)
	}

	invSqrt := float32(1 / math.Sqrt(float64(hd)))
	att := make([]float32, n)
	ctx := make([]float32, d)
	proj := make([]float32, d)
	hidden := make([]float32, m.cfg.NHid)
	ff := make([]float32, d)

	out := make([][]float32, n)
	copy(out, xs)
	for i := from; i < n; i++ {
		limit := n
		if m.cfg.Causal {
			limit = i + 1
		}
		for h := 0; h < heads; h++ {
			q := qkv[i][h*hd : (h+1)*hd]
			for j := 0; j < limit; j++ {
				k := qkv[j][d+h*hd : d+(h+1)*hd]
				att[j] = tensor.Dot(q, k) * invSqrt
			}
			tensor.Softmax(att[:limit])
			c := ctx[h*hd : (h+1)*hd]
			clear(c)
			for j := 0; j < limit; j++ {
				v := qkv[j][2*d+h*hd : 2*d+(h+1)*hd]
				for e := range c {
					c[e] += att[j] * v[e]
				}
			}
		}
		tensor.Linear(proj, &layer.outProj, ctx, layer.outBias)

		x := make([]float32, d)
		copy(x, xs[i])
		tensor.Add(x, proj)
		tensor.LayerNorm(x, x, layer.norm1w, layer.norm1b, layerNormEps)

		tensor.Linear(hidden, &layer.lin1, x, layer.lin1b)
		for e := range hidden {
			hidden[e] = tensor.Relu(hidden[e])
		}
		tensor.Linear(ff, &layer.lin2, hidden, layer.lin2b)
		tensor.Add(x, ff)
		tensor.LayerNorm(x, x, layer.norm2w, layer.norm2b, layerNormEps)
		out[i] = x
	}
	return out
}

// addPositional adds the sinusoidal encoding of pos to x.
func addPositional(x []float32, pos int) {
	d := float64(len(x))
	for j := range x {
		even := j - j%2
		angle := float64(pos) * math.Exp(float64(even)*(-math.Log(10000.0)/d))
		if j%2 == 0 {
			x[j] += float32(math.Sin(angle))
		} else {
			x[j] += float32(math.Cos(angle))
		}
	}
}
