package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/nextword/internal/api"
	"github.com/samcharles93/nextword/internal/inference"
	"github.com/samcharles93/nextword/internal/logger"
	"github.com/samcharles93/nextword/internal/version"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		watch       bool
		cacheTTL    time.Duration
		cacheSize   int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the prediction form and the JSON API",
		Flags: append(commonModelFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.BoolFlag{
				Name:        "watch",
				Usage:       "reload the model when the artifacts change on disk",
				Destination: &watch,
			},
			&cli.DurationFlag{
				Name:        "cache-ttl",
				Usage:       "how long identical predictions are served from cache (0 disables)",
				Value:       api.DefaultCacheTTL,
				Destination: &cacheTTL,
			},
			&cli.Int64Flag{
				Name:        "cache-size",
				Usage:       "maximum cached predictions",
				Value:       api.DefaultCacheCapacity,
				Destination: &cacheSize,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := applyServeConfig(cmd, cfg, &addr, &watch, &cacheTTL); err != nil {
				return err
			}
			log := logger.FromContext(ctx)

			loader := inference.Loader{ModelPath: modelPath, VocabPath: vocabPath}
			provider := inference.NewCachedProvider(loader, log)
			bundle, err := provider.Bundle(ctx)
			if err != nil {
				return err
			}
			log.Info("model loaded",
				"name", bundle.Model.Config().Name,
				"window", bundle.Model.Config().Window,
				"words", bundle.Vocab.Size(),
			)

			var store *api.PredictionStore
			if cacheTTL > 0 && cacheSize > 0 {
				store = api.NewPredictionStore(cacheTTL, uint64(cacheSize))
				provider.OnReload(func(*inference.Bundle) { store.Clear() })
			}

			if watch {
				w, err := inference.NewWatcher(loader.Paths(), provider, log, inference.DefaultDebounce)
				if err != nil {
					return err
				}
				if err := w.Start(ctx); err != nil {
					w.Stop()
					return err
				}
				defer w.Stop()
			}

			server := api.NewServer(provider, store, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "version", version.String(), "address", addr, "watch", watch, "cache_ttl", cacheTTL)
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
