package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nextword/internal/logger"
	"github.com/samcharles93/nextword/internal/model"
)

// demoWords is the vocabulary of the demo artifacts, in index order.
var demoWords = []string{
	"the", "and", "he", "she", "could", "have", "been", "was", "a", "of",
	"to", "in", "it", "said", "would", "not", "be", "her", "his", "that",
	"with", "for", "as", "on", "at", "by", "had", "i", "you", "they",
	"there", "what", "when", "so", "all", "one", "no", "but", "very", "time",
}

func demoCmd() *cli.Command {
	var (
		outDir    string
		seed      int64
		window    int64
		embedding int64
		units     []int64
	)

	return &cli.Command{
		Name:  "demo",
		Usage: "Write a small random model and vocabulary for trying the other commands",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory", Value: "demo", Destination: &outDir},
			&cli.Int64Flag{Name: "seed", Usage: "weight seed", Value: 1, Destination: &seed},
			&cli.Int64Flag{Name: "window", Usage: "training sequence length", Value: 5, Destination: &window},
			&cli.Int64Flag{Name: "embedding", Usage: "embedding dimension", Value: 16, Destination: &embedding},
			&cli.Int64SliceFlag{Name: "units", Usage: "lstm units per layer", Value: []int64{32}, Destination: &units},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			modelOut, vocabOut, err := writeDemo(outDir, seed, int(window), int(embedding), units)
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Info("demo artifacts written", "model", modelOut, "vocab", vocabOut)
			_, _ = fmt.Fprintf(cmd.Root().Writer, "nextword predict --model %s --vocab %s \"he could\"\n", modelOut, vocabOut)
			return nil
		},
	}
}

func writeDemo(dir string, seed int64, window, embedding int, units []int64) (string, string, error) {
	cfg := model.Config{
		Name:         "demo",
		Window:       window,
		VocabSize:    len(demoWords) + 1,
		EmbeddingDim: embedding,
	}
	for _, u := range units {
		cfg.Units = append(cfg.Units, int(u))
	}
	m, err := model.NewRandom(cfg, seed)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}

	modelOut := filepath.Join(dir, "model.safetensors")
	if err := m.Save(modelOut); err != nil {
		return "", "", err
	}

	index := make(map[string]int, len(demoWords))
	for i, w := range demoWords {
		index[w] = i + 1
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return "", "", err
	}
	vocabOut := filepath.Join(dir, "vocab.json")
	if err := os.WriteFile(vocabOut, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write vocabulary: %w", err)
	}
	return modelOut, vocabOut, nil
}
