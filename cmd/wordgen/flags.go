package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wordgen/internal/logger"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	debug      bool
)

func envVars(name string) cli.ValueSourceChain {
	return cli.EnvVars("WORDGEN_" + name)
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default $XDG_CONFIG_HOME/wordgen/config.yaml)",
			Sources:     envVars("CONFIG"),
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     envVars("LOG_LEVEL"),
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Sources:     envVars("LOG_FORMAT"),
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Sources:     envVars("DEBUG"),
			Destination: &debug,
		},
	}
}

// withLogger builds the logger selected by the logging flags (after config
// file defaults) and stores it in ctx.
func withLogger(ctx context.Context, c *cli.Command, cfg Config) (context.Context, logger.Logger) {
	applyLogConfig(c, cfg)
	log := logger.FromOptions(os.Stderr, logger.Options{
		Level:  logLevel,
		Format: logFormat,
		Debug:  debug,
		Color:  isTerminal(os.Stderr),
	})
	return logger.WithContext(ctx, log), log
}
