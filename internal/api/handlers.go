package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/nextword/internal/inference"
	"github.com/samcharles93/nextword/internal/predict"
	"github.com/samcharles93/nextword/internal/similar"
)

const defaultSimilarK = 10

func (s *Server) handlePredict(c *echo.Context) error {
	req, err := decodeJSON[PredictRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return writeError(c, http.StatusBadRequest, errTypeInvalidRequest, "text is required", "text")
	}

	pred, cached, err := s.predict(c.Request().Context(), predict.Request(req))
	if err != nil {
		status, _ := classify(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("prediction failed", "error", err)
		}
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, newPredictResponse(pred, cached))
}

func (s *Server) handleModel(c *echo.Context) error {
	var info inference.Info
	err := s.provider.WithBundle(c.Request().Context(), func(b *inference.Bundle) error {
		info = b.Info()
		return nil
	})
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, ModelResponse{Object: "model", Info: info})
}

func (s *Server) handleSimilar(c *echo.Context) error {
	word := strings.TrimSpace(c.Param("word"))
	if word == "" {
		return writeBadRequest(c, "word is required")
	}
	k, err := parseIntParam("k", c.QueryParam("k"), defaultSimilarK)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if k < 1 || k > similar.MaxK {
		return writeError(c, http.StatusBadRequest, errTypeInvalidRequest, fmt.Sprintf("k must be between 1 and %d", similar.MaxK), "k")
	}

	var neighbors []similar.Neighbor
	err = s.provider.WithBundle(c.Request().Context(), func(b *inference.Bundle) error {
		var err error
		neighbors, err = b.Neighbors.Nearest(word, k)
		return err
	})
	if err != nil {
		if status, _ := classify(err); status == http.StatusNotFound {
			return writeNotFound(c, err.Error())
		}
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, SimilarResponse{Object: "list", Word: word, Neighbors: neighbors})
}
