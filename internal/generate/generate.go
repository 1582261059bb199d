// Package generate runs the word sampling loop: it picks a seed token,
// steps the model a fixed number of times, lets the prompt override the
// first samples and writes every chosen word.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/wordgen/internal/logits"
	"github.com/samcharles93/wordgen/internal/model"
	"github.com/samcharles93/wordgen/internal/prompt"
)

// ErrUnknownToken is returned when the model produces an id the vocabulary
// cannot resolve.
var ErrUnknownToken = errors.New("generated token is not in the vocabulary")

// Vocabulary resolves generated ids back to words.
type Vocabulary interface {
	Word(id int) (string, bool)
	Len() int
}

// Stats summarizes a finished or interrupted run.
type Stats struct {
	Words    int
	Forced   int
	Duration time.Duration
	WPS      float64
}

// Generator holds the collaborators of a run. A Generator is not safe for
// concurrent use: the model carries state between steps.
type Generator struct {
	Model    model.Model
	Sampler  *logits.Sampler
	Vocab    Vocabulary
	Progress Reporter
}

// Run resets the model and generates exactly words words into out. The
// first min(words, p.Len()) chosen tokens are the prompt tokens; a sample
// is still drawn at each of those steps so the random stream does not
// depend on the prompt.
func (g *Generator) Run(ctx context.Context, p prompt.Sanitized, words int, out *Writer) (stats Stats, err error) {
	start := time.Now()
	defer func() {
		stats.Duration = time.Since(start)
		if stats.Duration.Seconds() > 0 {
			stats.WPS = float64(stats.Words) / stats.Duration.Seconds()
		}
	}()

	if g.Vocab.Len() == 0 {
		return stats, fmt.Errorf("empty vocabulary")
	}
	g.Model.Reset()

	current := SelectSeed(p, g.Vocab.Len(), g.Sampler)
	remaining := p.Len()

	for i := 0; i < words; i++ {
		if err = ctx.Err(); err != nil {
			return stats, err
		}
		if g.Progress != nil {
			g.Progress.Report(i, words)
		}

		scores, err := g.Model.Step(current)
		if err != nil {
			return stats, fmt.Errorf("step %d: %w", i, err)
		}
		chosen := g.Sampler.Sample(scores)
		if remaining > 0 {
			chosen = p.At(p.Len() - remaining)
			remaining--
			stats.Forced++
		}
		current = chosen

		word, ok := g.Vocab.Word(chosen)
		if !ok {
			return stats, fmt.Errorf("step %d: id %d: %w", i, chosen, ErrUnknownToken)
		}
		if err := out.Write(i, word); err != nil {
			return stats, fmt.Errorf("write output: %w", err)
		}
		stats.Words++
	}
	if g.Progress != nil {
		g.Progress.Finish()
	}
	return stats, nil
}
