package model

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// NewRandom builds a model with reproducible pseudo-random weights. The
// predictions are meaningless but deterministic for a given seed, which is
// what tests and the demo artifacts need.
func NewRandom(cfg Config, seed int64) (*LSTM, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = "random"
	}
	rng := rand.New(rand.NewSource(seed))
	fill := func(r, c int, scale float64) *mat.Dense {
		data := make([]float64, r*c)
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * scale
		}
		return mat.NewDense(r, c, data)
	}

	m := &LSTM{
		cfg:       cfg,
		embedding: fill(cfg.VocabSize, cfg.EmbeddingDim, 1),
	}
	m.cfg.Units = append([]int(nil), cfg.Units...)
	in := cfg.EmbeddingDim
	for _, u := range cfg.Units {
		bias := make([]float64, 4*u)
		// Keras initialises the forget gate bias to one.
		for j := u; j < 2*u; j++ {
			bias[j] = 1
		}
		m.layers = append(m.layers, lstmLayer{
			units:     u,
			kernel:    fill(in, 4*u, 0.5),
			recurrent: fill(u, 4*u, 0.5),
			bias:      bias,
		})
		in = u
	}
	m.denseW = fill(in, cfg.VocabSize, 2)
	m.denseB = make([]float64, cfg.VocabSize)
	return m, nil
}
