package model

import (
	"fmt"
	"strings"

	"github.com/samcharles93/wordgen/internal/safetensors"
	"github.com/samcharles93/wordgen/internal/tensor"
)

// TensorShape names one weight a checkpoint of a given Config must contain.
type TensorShape struct {
	Name  string
	Shape []int
}

// Layout lists every tensor cfg requires, in a stable order.
func Layout(cfg Config) []TensorShape {
	d, nhid, ntok := cfg.NInp, cfg.NHid, cfg.NToken
	out := []TensorShape{{"encoder.weight", []int{ntok, d}}}
	if cfg.Type == TypeTransformer {
		for l := 0; l < cfg.NLayers; l++ {
			p := fmt.Sprintf("transformer_encoder.layers.%d.", l)
			out = append(out,
				TensorShape{p + "self_attn.in_proj_weight", []int{3 * d, d}},
				TensorShape{p + "self_attn.in_proj_bias", []int{3 * d}},
				TensorShape{p + "self_attn.out_proj.weight", []int{d, d}},
				TensorShape{p + "self_attn.out_proj.bias", []int{d}},
				TensorShape{p + "linear1.weight", []int{nhid, d}},
				TensorShape{p + "linear1.bias", []int{nhid}},
				TensorShape{p + "linear2.weight", []int{d, nhid}},
				TensorShape{p + "linear2.bias", []int{d}},
				TensorShape{p + "norm1.weight", []int{d}},
				TensorShape{p + "norm1.bias", []int{d}},
				TensorShape{p + "norm2.weight", []int{d}},
				TensorShape{p + "norm2.bias", []int{d}},
			)
		}
		return append(out,
			TensorShape{"decoder.weight", []int{ntok, d}},
			TensorShape{"decoder.bias", []int{ntok}},
		)
	}
	g := gateCount(cfg.Type)
	for l := 0; l < cfg.NLayers; l++ {
		in := d
		if l > 0 {
			in = nhid
		}
		out = append(out,
			TensorShape{fmt.Sprintf("rnn.weight_ih_l%d", l), []int{g * nhid, in}},
			TensorShape{fmt.Sprintf("rnn.weight_hh_l%d", l), []int{g * nhid, nhid}},
			TensorShape{fmt.Sprintf("rnn.bias_ih_l%d", l), []int{g * nhid}},
			TensorShape{fmt.Sprintf("rnn.bias_hh_l%d", l), []int{g * nhid}},
		)
	}
	return append(out,
		TensorShape{"decoder.weight", []int{ntok, nhid}},
		TensorShape{"decoder.bias", []int{ntok}},
	)
}

// RandomTensors returns reproducible pseudo-random weights for cfg. Layer
// norm weights are set to one so untrained models still normalize sensibly.
// They are meant for tests and smoke runs, not for meaningful text.
func RandomTensors(cfg Config, seed int64) []safetensors.Tensor {
	layout := Layout(cfg)
	out := make([]safetensors.Tensor, 0, len(layout))
	for i, ts := range layout {
		n := 1
		for _, d := range ts.Shape {
			n *= d
		}
		data := make([]float32, n)
		switch {
		case isNormWeight(ts.Name):
			for j := range data {
				data[j] = 1
			}
		case isNormBias(ts.Name):
		default:
			m, _ := tensor.NewMatFromData(1, n, data)
			tensor.FillRand(&m, seed+int64(i)*7919, 0.5)
		}
		out = append(out, safetensors.Tensor{Name: ts.Name, Shape: ts.Shape, Data: data})
	}
	return out
}

func isNormWeight(name string) bool {
	return strings.HasSuffix(name, "norm1.weight") || strings.HasSuffix(name, "norm2.weight")
}

func isNormBias(name string) bool {
	return strings.HasSuffix(name, "norm1.bias") || strings.HasSuffix(name, "norm2.bias")
}
