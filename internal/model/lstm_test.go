package model

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/nextword/internal/safetensors"
)

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// unitModel is a one-unit, one-dimension LSTM whose output can be checked by hand.
func unitModel() *LSTM {
	return &LSTM{
		cfg: Config{Name: "unit", Window: 2, VocabSize: 2, EmbeddingDim: 1, Units: []int{1}},
		embedding: mat.NewDense(2, 1, []float64{0, 1}),
		layers: []lstmLayer{{
			units:     1,
			kernel:    mat.NewDense(1, 4, []float64{1, 1, 1, 1}),
			recurrent: mat.NewDense(1, 4, []float64{0, 0, 0, 0}),
			bias:      []float64{0, 0, 0, 0},
		}},
		denseW: mat.NewDense(1, 2, []float64{1, -1}),
		denseB: []float64{0, 0},
	}
}

func TestPredictMatchesHandComputation(t *testing.T) {
	t.Parallel()
	m := unitModel()

	got, err := m.Predict(context.Background(), []int{1})
	require.NoError(t, err)
	require.Len(t, got, 2)

	gate := sigmoid(1)
	c := gate * math.Tanh(1)
	h := gate * math.Tanh(c)
	want0 := 1 / (1 + math.Exp(-2*h))
	assert.InDelta(t, want0, got[0], 1e-12)
	assert.InDelta(t, 1-want0, got[1], 1e-12)
}

func TestPredictPaddingOnlyIsUniformWithZeroWeights(t *testing.T) {
	t.Parallel()
	m := unitModel()

	got, err := m.Predict(context.Background(), []int{0})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got[0], 1e-12)
	assert.InDelta(t, 0.5, got[1], 1e-12)
}

func TestPredictValidatesInput(t *testing.T) {
	t.Parallel()
	m := unitModel()

	_, err := m.Predict(context.Background(), []int{1, 1})
	require.ErrorIs(t, err, ErrInputLength)
	_, err = m.Predict(context.Background(), nil)
	require.ErrorIs(t, err, ErrInputLength)
	_, err = m.Predict(context.Background(), []int{2})
	require.ErrorIs(t, err, ErrTokenRange)
	_, err = m.Predict(context.Background(), []int{-1})
	require.ErrorIs(t, err, ErrTokenRange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Predict(ctx, []int{1})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRandomModelDistribution(t *testing.T) {
	t.Parallel()
	cfg := Config{Window: 5, VocabSize: 20, EmbeddingDim: 4, Units: []int{6, 3}}
	m, err := NewRandom(cfg, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, m.InputLength())
	assert.Equal(t, 20, m.VocabSize())

	probs, err := m.Predict(context.Background(), []int{0, 0, 3, 9})
	require.NoError(t, err)
	var sum float64
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	again, err := NewRandom(cfg, 7)
	require.NoError(t, err)
	probs2, err := again.Predict(context.Background(), []int{0, 0, 3, 9})
	require.NoError(t, err)
	assert.Equal(t, probs, probs2)
}

func TestRandomRejectsBadConfig(t *testing.T) {
	t.Parallel()
	bad := []Config{
		{Window: 1, VocabSize: 5, EmbeddingDim: 2, Units: []int{2}},
		{Window: 3, VocabSize: 1, EmbeddingDim: 2, Units: []int{2}},
		{Window: 3, VocabSize: 5, EmbeddingDim: 0, Units: []int{2}},
		{Window: 3, VocabSize: 5, EmbeddingDim: 2},
		{Window: 3, VocabSize: 5, EmbeddingDim: 2, Units: []int{0}},
	}
	for _, cfg := range bad {
		_, err := NewRandom(cfg, 1)
		assert.Error(t, err, "config %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := Config{Name: "roundtrip", Window: 4, VocabSize: 12, EmbeddingDim: 3, Units: []int{5, 4}}
	m, err := NewRandom(cfg, 42)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded.Config())
	assert.Equal(t, cfg.Params(), loaded.Config().Params())

	in := []int{0, 5, 11}
	want, err := m.Predict(context.Background(), in)
	require.NoError(t, err)
	got, err := loaded.Predict(context.Background(), in)
	require.NoError(t, err)
	// weights pass through float32 on disk
	assert.InDeltaSlice(t, want, got, 1e-5)

	emb, err := loaded.Embedding(5)
	require.NoError(t, err)
	assert.Len(t, emb, 3)
	_, err = loaded.Embedding(12)
	assert.ErrorIs(t, err, ErrTokenRange)
}

func TestLoadRejectsBrokenArtifacts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.safetensors"))
	assert.Error(t, err)

	noWindow := filepath.Join(dir, "nowindow.safetensors")
	require.NoError(t, safetensors.Write(noWindow, []safetensors.Tensor{
		{Name: TensorEmbedding, Shape: []int{2, 1}, Data: []float32{0, 1}},
	}, nil))
	_, err = Load(noWindow)
	assert.Error(t, err)

	noLayers := filepath.Join(dir, "nolayers.safetensors")
	require.NoError(t, safetensors.Write(noLayers, []safetensors.Tensor{
		{Name: TensorEmbedding, Shape: []int{2, 1}, Data: []float32{0, 1}},
		{Name: TensorDenseW, Shape: []int{1, 2}, Data: []float32{1, -1}},
		{Name: TensorDenseB, Shape: []int{2}, Data: []float32{0, 0}},
	}, map[string]string{MetaSequenceLength: "3"}))
	_, err = Load(noLayers)
	assert.Error(t, err)

	gru := filepath.Join(dir, "gru.safetensors")
	require.NoError(t, safetensors.Write(gru, []safetensors.Tensor{
		{Name: TensorEmbedding, Shape: []int{2, 1}, Data: []float32{0, 1}},
	}, map[string]string{MetaSequenceLength: "3", MetaArchitecture: "gru"}))
	_, err = Load(gru)
	assert.Error(t, err)
}

func TestPredictConcurrentCallers(t *testing.T) {
	t.Parallel()
	m, err := NewRandom(Config{Window: 6, VocabSize: 30, EmbeddingDim: 8, Units: []int{16}}, 3)
	require.NoError(t, err)

	in := []int{1, 2, 3, 4, 5}
	want, err := m.Predict(context.Background(), in)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			got, err := m.Predict(context.Background(), in)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
	wg.Wait()
}
