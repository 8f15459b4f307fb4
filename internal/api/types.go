package api

import (
	"github.com/samcharles93/nextword/internal/inference"
	"github.com/samcharles93/nextword/internal/predict"
	"github.com/samcharles93/nextword/internal/similar"
)

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
}

// PredictRequest is the body of POST /v1/predict. Zero words and top_n take
// the defaults.
type PredictRequest struct {
	Text  string `json:"text"`
	Words int    `json:"words,omitempty"`
	TopN  int    `json:"top_n,omitempty"`
}

type PredictResponse struct {
	ID            string               `json:"id"`
	Object        string               `json:"object"`
	Created       int64                `json:"created"`
	Model         string               `json:"model"`
	Prompt        string               `json:"prompt"`
	Words         int                  `json:"words"`
	Completions   []predict.Completion `json:"completions"`
	ElapsedMS     float64              `json:"elapsed_ms"`
	ForwardPasses int                  `json:"forward_passes"`
	Cached        bool                 `json:"cached"`
}

func newPredictResponse(p *predict.Prediction, cached bool) PredictResponse {
	return PredictResponse{
		ID:            p.ID,
		Object:        "prediction",
		Created:       p.Created.Unix(),
		Model:         p.Model,
		Prompt:        p.Prompt,
		Words:         p.Words,
		Completions:   p.Completions,
		ElapsedMS:     p.ElapsedMillis(),
		ForwardPasses: p.ForwardPasses,
		Cached:        cached,
	}
}

type ModelResponse struct {
	Object string `json:"object"`
	inference.Info
}

type SimilarResponse struct {
	Object    string             `json:"object"`
	Word      string             `json:"word"`
	Neighbors []similar.Neighbor `json:"neighbors"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Loaded bool   `json:"loaded"`
}
