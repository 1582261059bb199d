package model

import (
	"fmt"

	"github.com/samcharles93/wordgen/internal/tensor"
)

// rnnLayer holds one stacked recurrent layer. Gate rows are concatenated in
// the order i,f,g,o for LSTM and r,z,n for GRU.
type rnnLayer struct {
	wih, whh tensor.Mat
	bih, bhh []float32
}

// RNN is the recurrent model family: an embedding, a stack of RNN_TANH,
// RNN_RELU, LSTM or GRU layers, and a linear decoder producing
// log-probabilities.
type RNN struct {
	cfg     Config
	gates   int
	encoder tensor.Mat
	layers  []rnnLayer
	decoder tensor.Mat
	decBias []float32

	h, c   [][]float32
	gi, gh []float32
	x      []float32
	scores []float32
}

func gateCount(typ string) int {
	switch typ {
	case TypeLSTM:
		return 4
	case TypeGRU:
		return 3
	default:
		return 1
	}
}

func newRNN(cfg Config, w weights) (*RNN, error) {
	g := gateCount(cfg.Type)
	m := &RNN{cfg: cfg, gates: g}

	var err error
	if m.encoder, err = w.mat("encoder.weight", cfg.NToken, cfg.NInp); err != nil {
		return nil, err
	}
	for l := 0; l < cfg.NLayers; l++ {
		in := cfg.NInp
		if l > 0 {
			in = cfg.NHid
		}
		var layer rnnLayer
		if layer.wih, err = w.mat(fmt.Sprintf("rnn.weight_ih_l%d", l), g*cfg.NHid, in); err != nil {
			return nil, err
		}
		if layer.whh, err = w.mat(fmt.Sprintf("rnn.weight_hh_l%d", l), g*cfg.NHid, cfg.NHid); err != nil {
			return nil, err
		}
		if layer.bih, err = w.vec(fmt.Sprintf("rnn.bias_ih_l%d", l), g*cfg.NHid); err != nil {
			return nil, err
		}
		if layer.bhh, err = w.vec(fmt.Sprintf("rnn.bias_hh_l%d", l), g*cfg.NHid); err != nil {
			return nil, err
		}
		m.layers = append(m.layers, layer)
	}
	if m.decoder, err = w.mat("decoder.weight", cfg.NToken, cfg.NHid); err != nil {
		return nil, err
	}
	if m.decBias, err = w.vec("decoder.bias", cfg.NToken); err != nil {
		return nil, err
	}

	m.h = make([][]float32, cfg.NLayers)
	m.c = make([][]float32, cfg.NLayers)
	for l := range m.h {
		m.h[l] = make([]float32, cfg.NHid)
		m.c[l] = make([]float32, cfg.NHid)
	}
	m.gi = make([]float32, g*cfg.NHid)
	m.gh = make([]float32, g*cfg.NHid)
	m.x = make([]float32, max(cfg.NInp, cfg.NHid))
	m.scores = make([]float32, cfg.NToken)
	return m, nil
}

func (m *RNN) Kind() Kind     { return Recurrent }
func (m *RNN) VocabSize() int { return m.cfg.NToken }
func (m *RNN) Config() Config { return m.cfg }

// Reset zeroes the hidden (and cell) state of every layer.
func (m *RNN) Reset() {
	for l := range m.h {
		clear(m.h[l])
		clear(m.c[l])
	}
}

// Step advances the hidden state by one token and returns log-probabilities
// for the next token.
func (m *RNN) Step(token int) ([]float32, error) {
	if err := checkToken(token, m.cfg.NToken); err != nil {
		return nil, err
	}
	x := m.x[:m.cfg.NInp]
	m.encoder.RowTo(x, token)

	n := m.cfg.NHid
	for l := range m.layers {
		layer := &m.layers[l]
		tensor.Linear(m.gi, &layer.wih, x, layer.bih)
		tensor.Linear(m.gh, &layer.whh, m.h[l], layer.bhh)
		h, c := m.h[l], m.c[l]

		switch m.cfg.Type {
		case TypeRNNTanh:
			for j := 0; j < n; j++ {
				h[j] = tensor.Tanh(m.gi[j] + m.gh[j])
			}
		case TypeRNNReLU:
			for j := 0; j < n; j++ {
				h[j] = tensor.Relu(m.gi[j] + m.gh[j])
			}
		case TypeLSTM:
			for j := 0; j < n; j++ {
				i := tensor.Sigmoid(m.gi[j] + m.gh[j])
				f := tensor.Sigmoid(m.gi[n+j] + m.gh[n+j])
				g := tensor.Tanh(m.gi[2*n+j] + m.gh[2*n+j])
				o := tensor.Sigmoid(m.gi[3*n+j] + m.gh[3*n+j])
				c[j] = f*c[j] + i*g
				h[j] = o * tensor.Tanh(c[j])
			}
		case TypeGRU:
			for j := 0; j < n; j++ {
				r := tensor.Sigmoid(m.gi[j] + m.gh[j])
				z := tensor.Sigmoid(m.gi[n+j] + m.gh[n+j])
				nn := tensor.Tanh(m.gi[2*n+j] + r*m.gh[2*n+j])
				h[j] = (1-z)*nn + z*h[j]
			}
		}
		x = m.x[:n]
		copy(x, h)
	}

	tensor.Linear(m.scores, &m.decoder, x, m.decBias)
	tensor.LogSoftmax(m.scores)
	return m.scores, nil
}
