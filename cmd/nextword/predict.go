package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nextword/internal/inference"
	"github.com/samcharles93/nextword/internal/logger"
	"github.com/samcharles93/nextword/internal/predict"
	"github.com/samcharles93/nextword/internal/tui"
)

// loadBundle reads the artifacts named by the model flags.
func loadBundle(ctx context.Context) (*inference.Bundle, error) {
	loader := inference.Loader{ModelPath: modelPath, VocabPath: vocabPath}
	b, err := loader.Load()
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("model loaded", "model", b.ModelPath, "vocab", b.VocabPath)
	return b, nil
}

func predictCmd() *cli.Command {
	var (
		words  int64
		topN   int64
		asJSON bool
	)

	return &cli.Command{
		Name:      "predict",
		Usage:     "Print the top continuations of a prompt",
		ArgsUsage: "<text>",
		Flags: append(commonModelFlags(),
			&cli.Int64Flag{
				Name:        "words",
				Aliases:     []string{"n"},
				Usage:       fmt.Sprintf("words to predict (%d-%d)", predict.MinWords, predict.MaxWords),
				Value:       predict.DefaultWords,
				Destination: &words,
			},
			&cli.Int64Flag{
				Name:        "top",
				Aliases:     []string{"k"},
				Usage:       "number of continuations",
				Value:       predict.DefaultTopN,
				Destination: &topN,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the prediction as JSON",
				Destination: &asJSON,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyPredictConfig(cmd, cfg, &words, &topN)
			text := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("text is required")
			}
			req := predict.Request{Text: text, Words: int(words), TopN: int(topN)}
			if err := req.Validate(); err != nil {
				return err
			}

			b, err := loadBundle(ctx)
			if err != nil {
				return err
			}
			p, err := b.Predict(ctx, req)
			out := cmd.Root().Writer
			if errors.Is(err, predict.ErrUnrecognizedInput) {
				_, _ = fmt.Fprintln(out, tui.DefaultStyles().Warning.Render(predict.UnknownWordsWarning))
				return nil
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			}
			_, _ = fmt.Fprintln(out, tui.DefaultStyles().Prediction(p))
			return nil
		},
	}
}

func interactiveCmd() *cli.Command {
	return &cli.Command{
		Name:    "interactive",
		Aliases: []string{"ui"},
		Usage:   "Open the prediction form in the terminal",
		Flags:   commonModelFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, cfg)
			b, err := loadBundle(ctx)
			if err != nil {
				return err
			}
			return tui.Run(ctx, b.Predict)
		},
	}
}
