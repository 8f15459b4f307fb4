package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nextword/internal/similar"
)

func similarCmd() *cli.Command {
	var k int64

	return &cli.Command{
		Name:      "similar",
		Usage:     "List the words whose embeddings are closest to a word",
		ArgsUsage: "<word>",
		Flags: append(commonModelFlags(),
			&cli.Int64Flag{
				Name:        "k",
				Usage:       fmt.Sprintf("number of neighbours (1-%d)", similar.MaxK),
				Value:       10,
				Destination: &k,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, cfg)
			word := strings.TrimSpace(cmd.Args().First())
			if word == "" {
				return fmt.Errorf("word is required")
			}
			b, err := loadBundle(ctx)
			if err != nil {
				return err
			}
			neighbors, err := b.Neighbors.Nearest(word, int(k))
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			for _, n := range neighbors {
				_, _ = fmt.Fprintf(out, "%-20s %.4f\n", n.Word, n.Distance)
			}
			return nil
		},
	}
}
