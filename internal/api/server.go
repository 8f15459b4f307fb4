package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/nextword/internal/inference"
	"github.com/samcharles93/nextword/internal/logger"
	"github.com/samcharles93/nextword/internal/predict"
	"github.com/samcharles93/nextword/internal/webui"
)

type Server struct {
	provider inference.Provider
	store    *PredictionStore
	log      logger.Logger
}

// NewServer wires the handlers to provider. store may be nil to disable caching.
func NewServer(provider inference.Provider, store *PredictionStore, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		provider: provider,
		store:    store,
		log:      log,
	}
}

func (s *Server) Register(e *echo.Echo) {
	// Web form
	e.GET("/", s.handleIndex)
	e.POST("/", s.handleForm)
	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServer(webui.StaticFS()))))

	// JSON API
	e.POST("/v1/predict", s.handlePredict)
	e.GET("/v1/model", s.handleModel)
	e.GET("/v1/similar/:word", s.handleSimilar)

	e.GET("/healthz", s.handleHealthz)
}

// predict answers req from the cache when possible. The bool reports a cache hit.
// Entries are keyed by bundle generation so a prediction decoded by a model
// that was reloaded mid-request is never served for the new one.
func (s *Server) predict(ctx context.Context, req predict.Request) (*predict.Prediction, bool, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, false, err
	}

	var (
		out    *predict.Prediction
		cached bool
	)
	err = s.provider.WithBundle(ctx, func(b *inference.Bundle) error {
		key := cacheKey(b, req)
		if p := s.store.Get(key); p != nil {
			out, cached = p, true
			return nil
		}
		p, err := b.Predict(ctx, req)
		if err != nil {
			return err
		}
		s.store.Save(key, p)
		out = p
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !cached {
		s.log.Debug("prediction", "id", out.ID, "words", out.Words, "completions", len(out.Completions), "elapsed", out.Elapsed)
	}
	return out, cached, nil
}

func cacheKey(b *inference.Bundle, req predict.Request) string {
	return strconv.FormatUint(b.Generation, 10) + "|" + req.Key()
}

func (s *Server) handleHealthz(c *echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if l, ok := s.provider.(interface{ Loaded() bool }); ok {
		resp.Loaded = l.Loaded()
	}
	return c.JSON(http.StatusOK, resp)
}
