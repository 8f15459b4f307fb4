package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nextword/internal/inference"
	"github.com/samcharles93/nextword/internal/model"
	"github.com/samcharles93/nextword/internal/safetensors"
)

type tensorSummary struct {
	Name  string `json:"name"`
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
	Bytes int64  `json:"bytes"`
}

type inspectReport struct {
	Model    *inference.Info   `json:"model,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Tensors  []tensorSummary   `json:"tensors,omitempty"`
}

func inspectCmd() *cli.Command {
	var (
		showTensors bool
		asJSON      bool
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Summarise a model artifact and, with --vocab, its vocabulary",
		Flags: append(commonModelFlags(),
			&cli.BoolFlag{Name: "tensors", Usage: "list every tensor with dtype and shape", Destination: &showTensors},
			&cli.BoolFlag{Name: "json", Usage: "print the report as JSON", Destination: &asJSON},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, cfg)
			if strings.TrimSpace(modelPath) == "" {
				return fmt.Errorf("--model is required")
			}
			report, err := buildReport(ctx, showTensors)
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(out, report)
			return nil
		},
	}
}

func buildReport(ctx context.Context, withTensors bool) (inspectReport, error) {
	var report inspectReport

	f, err := safetensors.Open(modelPath)
	if err != nil {
		return report, fmt.Errorf("open %s: %w", modelPath, err)
	}
	report.Metadata = f.Metadata
	if withTensors {
		for _, name := range f.Names() {
			t, _ := f.Tensor(name)
			report.Tensors = append(report.Tensors, tensorSummary{
				Name:  name,
				DType: t.DType,
				Shape: slices.Clone(t.Shape),
				Bytes: t.End - t.Start,
			})
		}
	}

	if vocabPath != "" {
		b, err := loadBundle(ctx)
		if err != nil {
			return report, err
		}
		info := b.Info()
		report.Model = &info
		return report, nil
	}

	m, err := model.Load(modelPath)
	if err != nil {
		return report, err
	}
	c := m.Config()
	report.Model = &inference.Info{
		Name:         c.Name,
		Window:       c.Window,
		InputLength:  c.InputLength(),
		VocabSize:    c.VocabSize,
		EmbeddingDim: c.EmbeddingDim,
		Units:        c.Units,
		Params:       c.Params(),
		ModelPath:    modelPath,
	}
	return report, nil
}

func printReport(w io.Writer, r inspectReport) {
	if m := r.Model; m != nil {
		_, _ = fmt.Fprintf(w, "name:          %s\n", m.Name)
		_, _ = fmt.Fprintf(w, "window:        %d (input length %d)\n", m.Window, m.InputLength)
		_, _ = fmt.Fprintf(w, "vocab size:    %d\n", m.VocabSize)
		_, _ = fmt.Fprintf(w, "embedding dim: %d\n", m.EmbeddingDim)
		_, _ = fmt.Fprintf(w, "lstm units:    %v\n", m.Units)
		_, _ = fmt.Fprintf(w, "params:        %d\n", m.Params)
		if m.VocabPath != "" {
			_, _ = fmt.Fprintf(w, "words:         %d\n", m.Words)
			if m.OOVToken != "" {
				_, _ = fmt.Fprintf(w, "oov token:     %s\n", m.OOVToken)
			}
		}
	}
	if len(r.Metadata) > 0 {
		_, _ = fmt.Fprintln(w, "metadata:")
		keys := make([]string, 0, len(r.Metadata))
		for k := range r.Metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "  %s = %s\n", k, r.Metadata[k])
		}
	}
	if len(r.Tensors) > 0 {
		_, _ = fmt.Fprintln(w, "tensors:")
		for _, t := range r.Tensors {
			_, _ = fmt.Fprintf(w, "  %-28s %-4s %v\n", t.Name, t.DType, t.Shape)
		}
	}
}
