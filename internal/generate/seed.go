package generate

import "github.com/samcharles93/wordgen/internal/prompt"

// Intner draws uniform integers in [0, n).
type Intner interface {
	Intn(n int) int
}

// SelectSeed returns the first prompt token, or a uniformly random id in
// [0, n) when the prompt has no valid word.
func SelectSeed(p prompt.Sanitized, n int, rng Intner) int {
	if !p.Empty() {
		return p.At(0)
	}
	return rng.Intn(n)
}
