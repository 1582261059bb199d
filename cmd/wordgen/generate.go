package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wordgen/internal/generate"
	"github.com/samcharles93/wordgen/internal/logger"
	"github.com/samcharles93/wordgen/internal/logits"
	"github.com/samcharles93/wordgen/internal/model"
	"github.com/samcharles93/wordgen/internal/prompt"
	"github.com/samcharles93/wordgen/internal/vocab"
)

func generateCmd() *cli.Command {
	var (
		cfg         = generate.DefaultConfig()
		words       int64
		logInterval int64
		progress    bool
	)

	return &cli.Command{
		Name:  "generate",
		Usage: "Generate words from a checkpoint into a text file",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "data",
				Aliases:     []string{"corpus"},
				Usage:       "location of the corpus (train/valid/test.txt) or a vocab.json file",
				Value:       cfg.CorpusPath,
				Sources:     envVars("DATA"),
				Destination: &cfg.CorpusPath,
			},
			&cli.StringFlag{
				Name:        "checkpoint",
				Usage:       "model checkpoint to use (.safetensors)",
				Value:       cfg.CheckpointPath,
				Sources:     envVars("CHECKPOINT"),
				Destination: &cfg.CheckpointPath,
			},
			&cli.StringFlag{
				Name:        "outf",
				Aliases:     []string{"output", "o"},
				Usage:       "output file for generated text",
				Value:       cfg.OutputPath,
				Sources:     envVars("OUTF"),
				Destination: &cfg.OutputPath,
			},
			&cli.Int64Flag{
				Name:        "words",
				Aliases:     []string{"n"},
				Usage:       "number of words to generate",
				Value:       int64(cfg.WordCount),
				Sources:     envVars("WORDS"),
				Destination: &words,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "random seed",
				Value:       cfg.Seed,
				Sources:     envVars("SEED"),
				Destination: &cfg.Seed,
			},
			&cli.BoolFlag{
				Name:        "cuda",
				Usage:       "request an accelerator (only CPU execution is available)",
				Sources:     envVars("CUDA"),
				Destination: &cfg.UseAccelerator,
			},
			&cli.Float64Flag{
				Name:        "temperature",
				Aliases:     []string{"temp", "t"},
				Usage:       "temperature - higher will increase diversity",
				Value:       cfg.Temperature,
				Sources:     envVars("TEMPERATURE"),
				Destination: &cfg.Temperature,
			},
			&cli.Int64Flag{
				Name:        "log-interval",
				Usage:       "reporting interval in words",
				Value:       int64(cfg.LogInterval),
				Sources:     envVars("LOG_INTERVAL"),
				Destination: &logInterval,
			},
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"prompt", "p"},
				Usage:       "input words to start generation with",
				Sources:     envVars("INPUT"),
				Destination: &cfg.Prompt,
			},
			&cli.BoolFlag{
				Name:        "progress",
				Usage:       "draw a progress bar instead of progress log records (terminal only)",
				Sources:     envVars("PROGRESS"),
				Destination: &progress,
			},
		}, commonFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg.WordCount = int(words)
			cfg.LogInterval = int(logInterval)

			fc, err := LoadConfig(configFile)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			applyGenerateConfig(c, fc, &cfg, &progress)
			ctx, log := withLogger(ctx, c, fc)

			if err := cfg.Validate(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			var bar io.Writer
			if progress && isTerminal(os.Stderr) {
				bar = os.Stderr
			}
			if _, err := runGenerate(ctx, cfg, bar); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Warn("generation interrupted")
				}
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			return nil
		},
	}
}

// runGenerate loads the checkpoint and vocabulary named by cfg and writes
// cfg.WordCount words to cfg.OutputPath. cfg must already be valid. When
// bar is non-nil a progress bar is drawn on it instead of logging progress.
func runGenerate(ctx context.Context, cfg generate.Config, bar io.Writer) (generate.Stats, error) {
	log := logger.FromContext(ctx)

	if cfg.UseAccelerator {
		log.Warn("accelerator requested but only CPU execution is available; running on CPU")
	}

	ckpt, err := model.Load(cfg.CheckpointPath)
	if err != nil {
		return generate.Stats{}, fmt.Errorf("load model: %w", err)
	}
	log.Info("loaded checkpoint",
		"path", ckpt.Path,
		"type", ckpt.Config.Type,
		"kind", ckpt.Model.Kind().String(),
		"layers", ckpt.Config.NLayers,
		"digest", ckpt.DigestString(),
	)

	v, err := vocab.Load(cfg.CorpusPath)
	if err != nil {
		return generate.Stats{}, fmt.Errorf("load vocabulary: %w", err)
	}
	if v.Len() != ckpt.Config.NToken {
		return generate.Stats{}, fmt.Errorf("vocabulary has %d words but checkpoint expects %d", v.Len(), ckpt.Config.NToken)
	}
	log.Debug("loaded vocabulary", "path", cfg.CorpusPath, "words", v.Len())

	sanitized := prompt.Sanitize(cfg.Prompt, v, log)
	if cfg.Prompt != "" {
		log.Info("using prompt", "input", cfg.Prompt, "tokens", sanitized.Len(), "dropped", len(sanitized.Dropped()))
	}

	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return generate.Stats{}, fmt.Errorf("create output: %w", err)
	}
	defer func() { _ = f.Close() }()

	var reporter generate.Reporter = generate.LogReporter{Log: log, Interval: cfg.LogInterval}
	if bar != nil {
		reporter = generate.NewBarReporter(bar, cfg.WordCount)
	}
	sampler := logits.NewSampler(logits.SamplerConfig{
		Seed:        cfg.Seed,
		Temperature: float32(cfg.Temperature),
	})
	g := &generate.Generator{
		Model:    ckpt.Model,
		Sampler:  sampler,
		Vocab:    v,
		Progress: reporter,
	}
	w := generate.NewWriter(f)
	stats, runErr := g.Run(ctx, sanitized, cfg.WordCount, w)
	if err := w.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", err)
	}
	if runErr != nil {
		return stats, runErr
	}

	log.Info("generation complete",
		"output", cfg.OutputPath,
		"words", stats.Words,
		"forced", stats.Forced,
		"temperature", sampler.Temperature(),
		"duration", stats.Duration,
		"wps", fmt.Sprintf("%.1f", stats.WPS),
	)
	return stats, nil
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
