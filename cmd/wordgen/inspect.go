package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/wordgen/internal/model"
	"github.com/samcharles93/wordgen/internal/safetensors"
	"github.com/samcharles93/wordgen/internal/vocab"
)

type inspectReport struct {
	Checkpoint string            `json:"checkpoint"`
	Size       int64             `json:"size"`
	Digest     string            `json:"digest"`
	Type       string            `json:"type"`
	Kind       string            `json:"kind"`
	Metadata   map[string]string `json:"metadata"`
	NToken     int               `json:"ntoken"`
	Params     int64             `json:"params"`
	Tensors    []inspectTensor   `json:"tensors,omitempty"`
	VocabSize  int               `json:"vocab_size,omitempty"`
	VocabMatch *bool             `json:"vocab_match,omitempty"`
}

type inspectTensor struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
}

func inspectCmd() *cli.Command {
	var (
		checkpointPath string
		dataPath       string
		exportVocab    string
		showTensors    bool
		tensorFilter   string
		asJSON         bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a checkpoint and optionally its vocabulary",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "checkpoint",
				Usage:       "model checkpoint to inspect (.safetensors)",
				Value:       "./model.safetensors",
				Sources:     envVars("CHECKPOINT"),
				Destination: &checkpointPath,
			},
			&cli.StringFlag{
				Name:        "data",
				Aliases:     []string{"corpus"},
				Usage:       "corpus directory or vocab.json to check against the checkpoint",
				Destination: &dataPath,
			},
			&cli.StringFlag{
				Name:        "export-vocab",
				Usage:       "write the vocabulary loaded from --data as a JSON file",
				Destination: &exportVocab,
			},
			&cli.BoolFlag{
				Name:        "tensors",
				Usage:       "list tensors",
				Value:       true,
				Destination: &showTensors,
			},
			&cli.StringFlag{
				Name:        "filter",
				Usage:       "only list tensors whose name contains this substring",
				Destination: &tensorFilter,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the report as JSON",
				Destination: &asJSON,
			},
		}, commonFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			fc, err := LoadConfig(configFile)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if fc.Checkpoint != "" && !c.IsSet("checkpoint") {
				checkpointPath = fc.Checkpoint
			}
			_, log := withLogger(ctx, c, fc)

			if exportVocab != "" && dataPath == "" {
				return cli.Exit("error: --export-vocab requires --data", 1)
			}

			report, err := inspectCheckpoint(checkpointPath, showTensors, tensorFilter)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if dataPath != "" {
				v, err := vocab.Load(dataPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: load vocabulary: %v", err), 1)
				}
				report.VocabSize = v.Len()
				match := v.Len() == report.NToken
				report.VocabMatch = &match
				if exportVocab != "" {
					if err := vocab.Save(exportVocab, v); err != nil {
						return cli.Exit(fmt.Sprintf("error: export vocabulary: %v", err), 1)
					}
					log.Info("exported vocabulary", "path", exportVocab, "words", v.Len())
				}
			}

			w := stdout(c)
			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				_, _ = fmt.Fprintln(w, string(data))
				return nil
			}
			printReport(w, report)
			return nil
		},
	}
}

func inspectCheckpoint(path string, withTensors bool, filter string) (*inspectReport, error) {
	st, err := safetensors.Open(path)
	if err != nil {
		return nil, err
	}
	ckpt, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	report := &inspectReport{
		Checkpoint: path,
		Size:       st.Size,
		Digest:     ckpt.DigestString(),
		Type:       ckpt.Config.Type,
		Kind:       ckpt.Model.Kind().String(),
		Metadata:   st.Metadata,
		NToken:     ckpt.Config.NToken,
	}

	names := make([]string, 0, len(st.Tensors))
	for name := range st.Tensors {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		info := st.Tensors[name]
		n := int64(1)
		for _, d := range info.Shape {
			n *= int64(d)
		}
		report.Params += n
		if withTensors && (filter == "" || strings.Contains(name, filter)) {
			report.Tensors = append(report.Tensors, inspectTensor{Name: name, DType: info.DType, Shape: info.Shape})
		}
	}
	return report, nil
}

func printReport(w io.Writer, r *inspectReport) {
	section(w, "Checkpoint")
	row(w, "Path", r.Checkpoint)
	row(w, "Size", formatBytes(uint64(r.Size)))
	row(w, "Digest (xxh64)", r.Digest)
	row(w, "Model type", r.Type)
	row(w, "Kind", r.Kind)
	row(w, "Parameters", fmt.Sprintf("%d", r.Params))

	section(w, "Metadata")
	keys := make([]string, 0, len(r.Metadata))
	for k := range r.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		row(w, k, r.Metadata[k])
	}

	if len(r.Tensors) > 0 {
		section(w, "Tensors")
		for _, t := range r.Tensors {
			_, _ = fmt.Fprintf(w, "%-48s %-5s %v\n", t.Name, t.DType, t.Shape)
		}
	}

	if r.VocabMatch != nil {
		section(w, "Vocabulary")
		row(w, "Words", fmt.Sprintf("%d", r.VocabSize))
		row(w, "Matches ntoken", fmt.Sprintf("%t", *r.VocabMatch))
	}
}

func section(w io.Writer, title string) {
	line := strings.Repeat("-", len(title)+8)
	_, _ = fmt.Fprintf(w, "\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	_, _ = fmt.Fprintf(w, "%-24s %s\n", label+":", value)
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
