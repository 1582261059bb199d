package api

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/wordgen/internal/generate"
	"github.com/samcharles93/wordgen/internal/logger"
	"github.com/samcharles93/wordgen/internal/logits"
	"github.com/samcharles93/wordgen/internal/model"
	"github.com/samcharles93/wordgen/internal/prompt"
)

// Defaults are applied to request fields left unset.
type Defaults struct {
	Words       int
	Temperature float64
	Seed        int64
	MaxWords    int
}

type GenerationService struct {
	engine   *Engine
	defaults Defaults
	log      logger.Logger
}

func NewGenerationService(engine *Engine, defaults Defaults, log logger.Logger) *GenerationService {
	if log == nil {
		log = logger.Discard()
	}
	return &GenerationService{engine: engine, defaults: defaults, log: log}
}

func (s *GenerationService) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	cfg := generate.DefaultConfig()
	cfg.WordCount = s.defaults.Words
	cfg.Temperature = s.defaults.Temperature
	cfg.Seed = s.defaults.Seed
	cfg.Prompt = req.Prompt
	if req.Words != nil {
		cfg.WordCount = *req.Words
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if err := cfg.Validate(); err != nil {
		return nil, newInvalidRequest(invalidParam(cfg), err.Error())
	}
	if s.defaults.MaxWords > 0 && cfg.WordCount > s.defaults.MaxWords {
		return nil, newInvalidRequest("words", fmt.Sprintf("words must be at most %d, got %d", s.defaults.MaxWords, cfg.WordCount))
	}

	id := newGenerationID()
	log := s.log.With("id", id)
	v := s.engine.Vocab()
	sanitized := prompt.Sanitize(cfg.Prompt, v, log)

	resp := &GenerateResponse{
		ID:          id,
		Object:      "generation",
		CreatedAt:   timeNow().Unix(),
		Model:       s.engine.ID(),
		Prompt:      cfg.Prompt,
		Temperature: cfg.Temperature,
		Seed:        cfg.Seed,
		Dropped:     sanitized.Dropped(),
	}
	if resp.Dropped == nil {
		resp.Dropped = []string{}
	}

	var buf bytes.Buffer
	err := s.engine.WithModel(ctx, func(m model.Model) error {
		g := &generate.Generator{
			Model: m,
			Sampler: logits.NewSampler(logits.SamplerConfig{
				Seed:        cfg.Seed,
				Temperature: float32(cfg.Temperature),
			}),
			Vocab: v,
		}
		w := generate.NewWriter(&buf)
		stats, err := g.Run(ctx, sanitized, cfg.WordCount, w)
		if err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
		resp.Words = stats.Words
		resp.Forced = stats.Forced
		resp.Stats = GenerationStats{
			DurationMS: stats.Duration.Milliseconds(),
			WPS:        stats.WPS,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp.Text = buf.String()
	log.Debug("generation complete", "words", resp.Words, "forced", resp.Forced, "wps", resp.Stats.WPS)
	return resp, nil
}

func (s *GenerationService) Model() ModelResponse {
	ckpt := s.engine.Checkpoint()
	return ModelResponse{
		ID:        s.engine.ID(),
		Object:    "model",
		Type:      ckpt.Config.Type,
		Kind:      ckpt.Model.Kind().String(),
		Digest:    ckpt.DigestString(),
		VocabSize: s.engine.Vocab().Len(),
		Metadata:  ckpt.Config.Metadata(),
	}
}

var timeNow = func() time.Time {
	return time.Now()
}

func newGenerationID() string {
	return "gen-" + uuid.NewString()
}
