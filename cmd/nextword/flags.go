package main

import "github.com/urfave/cli/v3"

var (
	modelPath  string
	vocabPath  string
	configFile string
	logLevel   string
	logFormat  string
	debug      bool

	// cfg is the config file loaded by the root Before hook.
	cfg Config
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to the .safetensors model",
			Sources:     cli.EnvVars("NEXTWORD_MODEL"),
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "vocab",
			Usage:       "path to the tokenizer json (keras to_json or {word: index})",
			Sources:     cli.EnvVars("NEXTWORD_VOCAB"),
			Destination: &vocabPath,
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Usage:       "path to a config file (.yaml or .toml)",
		Sources:     cli.EnvVars("NEXTWORD_CONFIG"),
		Destination: &configFile,
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
