package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wordgen/internal/api"
	"github.com/samcharles93/wordgen/internal/generate"
	"github.com/samcharles93/wordgen/internal/model"
	"github.com/samcharles93/wordgen/internal/vocab"
)

func serveCmd() *cli.Command {
	var (
		cfg         = generate.DefaultConfig()
		addr        string
		readTimeout time.Duration
		words       int64
		maxWords    int64
		storeSize   int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve word generation over HTTP",
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
				Usage:       "model checkpoint to serve (.safetensors)",
				Value:       cfg.CheckpointPath,
				Sources:     envVars("CHECKPOINT"),
				Destination: &cfg.CheckpointPath,
			},
			&cli.Int64Flag{
				Name:        "words",
				Usage:       "default number of words per request",
				Value:       int64(cfg.WordCount),
				Sources:     envVars("WORDS"),
				Destination: &words,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "default random seed",
				Value:       cfg.Seed,
				Sources:     envVars("SEED"),
				Destination: &cfg.Seed,
			},
			&cli.Float64Flag{
				Name:        "temperature",
				Aliases:     []string{"temp", "t"},
				Usage:       "default temperature",
				Value:       cfg.Temperature,
				Sources:     envVars("TEMPERATURE"),
				Destination: &cfg.Temperature,
			},
			&cli.Int64Flag{
				Name:        "max-words",
				Usage:       "largest accepted words value per request",
				Value:       10000,
				Destination: &maxWords,
			},
			&cli.Int64Flag{
				Name:        "store-size",
				Usage:       "number of generations kept for GET /v1/generations/:id",
				Value:       api.DefaultStoreSize,
				Destination: &storeSize,
			},
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Sources:     envVars("ADDR"),
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		}, commonFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			fc, err := LoadConfig(configFile)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg.WordCount = int(words)
			var progress bool
			applyGenerateConfig(c, fc, &cfg, &progress)
			applyServeConfig(c, fc, &addr, &maxWords)
			ctx, log := withLogger(ctx, c, fc)

			if err := cfg.Validate(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			ckpt, err := model.Load(cfg.CheckpointPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			v, err := vocab.Load(cfg.CorpusPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: load vocabulary: %v", err), 1)
			}
			if v.Len() != ckpt.Config.NToken {
				return cli.Exit(fmt.Sprintf("error: vocabulary has %d words but checkpoint expects %d", v.Len(), ckpt.Config.NToken), 1)
			}

			engine := api.NewEngine(ckpt, v)
			service := api.NewGenerationService(engine, api.Defaults{
				Words:       cfg.WordCount,
				Temperature: cfg.Temperature,
				Seed:        cfg.Seed,
				MaxWords:    int(maxWords),
			}, log)
			server := api.NewServer(api.NewGenerationStore(int(storeSize)), service)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server",
				"address", addr,
				"model", engine.ID(),
				"type", ckpt.Config.Type,
				"digest", ckpt.DigestString(),
			)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
