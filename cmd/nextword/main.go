package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nextword/internal/logger"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:   "nextword",
		Usage:  "Predict the next words of a sentence with a recurrent language model",
		Flags:  append(loggingFlags(), configFlag()),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			serveCmd(),
			predictCmd(),
			interactiveCmd(),
			inspectCmd(),
			similarCmd(),
			demoCmd(),
			versionCmd(),
		},
	}
}

// setup loads the config file and installs the logger every subcommand reads
// from its context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := configFile
	if path == "" {
		path = configPath()
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	cfg = loaded
	applyLoggingConfig(cmd, cfg)

	log := logger.Setup(cmd.Root().ErrWriter, logFormat, logLevel, debug)
	if path != "" && cfg != (Config{}) {
		log.Debug("loaded config", "path", path)
	}
	return logger.WithContext(ctx, log), nil
}
