package api

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samcharles93/wordgen/internal/model"
	"github.com/samcharles93/wordgen/internal/vocab"
)

// Engine owns a loaded checkpoint and its vocabulary. Models carry state
// between steps, so callers get exclusive access through WithModel.
type Engine struct {
	ckpt  *model.Checkpoint
	vocab *vocab.Vocabulary
	mu    sync.Mutex
}

func NewEngine(ckpt *model.Checkpoint, v *vocab.Vocabulary) *Engine {
	return &Engine{ckpt: ckpt, vocab: v}
}

// ID names the model after its checkpoint file.
func (e *Engine) ID() string {
	base := filepath.Base(e.ckpt.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (e *Engine) Checkpoint() *model.Checkpoint { return e.ckpt }

func (e *Engine) Vocab() *vocab.Vocabulary { return e.vocab }

// WithModel runs fn while holding the model lock.
func (e *Engine) WithModel(ctx context.Context, fn func(m model.Model) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(e.ckpt.Model)
}
