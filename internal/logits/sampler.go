package logits

import (
	"fmt"
	"math"
	"math/rand"
)

// MinTemperature is the smallest accepted sampling temperature. Lower values
// make exp(score/T) overflow for ordinary score ranges.
const MinTemperature = 1e-3

// CheckTemperature reports whether t is an acceptable sampling temperature.
func CheckTemperature(t float64) error {
	if math.IsNaN(t) || t < MinTemperature {
		return fmt.Errorf("temperature has to be greater or equal %g, got %g", MinTemperature, t)
	}
	return nil
}

// SamplerConfig configures the behaviour of a Sampler.
type SamplerConfig struct {
	Seed        int64
	Temperature float32
}

// Sampler draws token ids from model scores. It owns the run's random
// stream, so every random decision of a run (seed token and samples) comes
// from one seeded source.
type Sampler struct {
	rng     *rand.Rand
	cfg     SamplerConfig
	weights []float64
}

// NewSampler returns a new sampler. Temperatures below MinTemperature are
// raised to it; callers validate user input with CheckTemperature first.
func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.Temperature < MinTemperature {
		cfg.Temperature = MinTemperature
	}
	return &Sampler{
		rng: rand.New(rand.NewSource(cfg.Seed)),
		cfg: cfg,
	}
}

// Temperature returns the effective temperature.
func (s *Sampler) Temperature() float32 { return s.cfg.Temperature }

// Sample draws a single index from scores:
//
//  1. Scores are divided by the temperature.
//  2. They are exponentiated into unnormalized categorical weights. The
//     maximum scaled score is subtracted first; this leaves the
//     distribution unchanged and keeps exp finite.
//  3. One index is drawn proportionally to the weights.
func (s *Sampler) Sample(scores []float32) int {
	if len(scores) == 0 {
		panic("logits: sample from empty scores")
	}
	invTemp := 1.0 / float64(s.cfg.Temperature)

	maxv := math.Inf(-1)
	for _, v := range scores {
		if x := float64(v) * invTemp; x > maxv {
			maxv = x
		}
	}
	if math.IsInf(maxv, -1) || math.IsNaN(maxv) {
		return argmax(scores)
	}

	if cap(s.weights) < len(scores) {
		s.weights = make([]float64, len(scores))
	}
	w := s.weights[:len(scores)]
	for i, v := range scores {
		w[i] = math.Exp(float64(v)*invTemp - maxv)
	}
	idx, ok := s.multinomial(w)
	if !ok {
		return argmax(scores)
	}
	return idx
}

// multinomial draws one index with probability proportional to weights.
// Negative and NaN weights count as zero; ok is false if none is positive.
func (s *Sampler) multinomial(weights []float64) (int, bool) {
	var sum float64
	last := -1
	for i, w := range weights {
		if w > 0 && !math.IsInf(w, 1) {
			sum += w
			last = i
		}
	}
	if last < 0 || sum == 0 {
		return 0, false
	}
	r := s.rng.Float64() * sum
	var c float64
	for i, w := range weights {
		if !(w > 0) || math.IsInf(w, 1) {
			continue
		}
		c += w
		if r < c {
			return i, true
		}
	}
	return last, true
}

// Intn returns a uniform integer in [0, n) from the sampler's stream.
func (s *Sampler) Intn(n int) int {
	return s.rng.Intn(n)
}

// argmax returns the index of the maximum value in the slice. If the slice is empty it panics.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
