// Package model runs the forward pass of the next-word language model:
// an embedding lookup, one or more stacked LSTM layers, and a dense softmax
// over the vocabulary. Weights are laid out the way Keras stores them, so an
// exported Sequential([Embedding, LSTM..., Dense]) model loads unchanged.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/nextword/internal/tensor"
)

var (
	ErrInputLength = errors.New("input length mismatch")
	ErrTokenRange  = errors.New("token index out of range")
)

// Config describes the shape of a loaded model.
type Config struct {
	Name         string
	Window       int // sequence length the model was trained on; it consumes Window-1 tokens
	VocabSize    int
	EmbeddingDim int
	Units        []int
}

// InputLength is the number of tokens fed to each forward pass.
func (c Config) InputLength() int { return c.Window - 1 }

// Params counts the trainable weights.
func (c Config) Params() int {
	n := c.VocabSize * c.EmbeddingDim
	in := c.EmbeddingDim
	for _, u := range c.Units {
		n += in*4*u + u*4*u + 4*u
		in = u
	}
	return n + in*c.VocabSize + c.VocabSize
}

func (c Config) validate() error {
	if c.Window < 2 {
		return fmt.Errorf("window must be at least 2, got %d", c.Window)
	}
	if c.VocabSize < 2 {
		return fmt.Errorf("vocab size must be at least 2, got %d", c.VocabSize)
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("embedding dim must be positive, got %d", c.EmbeddingDim)
	}
	if len(c.Units) == 0 {
		return fmt.Errorf("at least one lstm layer is required")
	}
	for i, u := range c.Units {
		if u < 1 {
			return fmt.Errorf("lstm layer %d: units must be positive, got %d", i, u)
		}
	}
	return nil
}

// lstmLayer holds one Keras LSTM layer. Gate blocks are ordered i, f, c, o
// along the 4*units axis.
type lstmLayer struct {
	units     int
	kernel    *mat.Dense // [in, 4*units]
	recurrent *mat.Dense // [units, 4*units]
	bias      []float64  // [4*units]
}

// LSTM is an immutable loaded model. Predict allocates its own state, so a
// single LSTM serves concurrent callers.
type LSTM struct {
	cfg       Config
	embedding *mat.Dense // [vocab, dim]
	layers    []lstmLayer
	denseW    *mat.Dense // [units, vocab]
	denseB    []float64
}

func (m *LSTM) Config() Config {
	cfg := m.cfg
	cfg.Units = append([]int(nil), m.cfg.Units...)
	return cfg
}

func (m *LSTM) InputLength() int { return m.cfg.InputLength() }

func (m *LSTM) VocabSize() int { return m.cfg.VocabSize }

// Embedding returns a copy of the embedding row for token i.
func (m *LSTM) Embedding(i int) ([]float64, error) {
	if i < 0 || i >= m.cfg.VocabSize {
		return nil, fmt.Errorf("%w: %d", ErrTokenRange, i)
	}
	return mat.Row(nil, i, m.embedding), nil
}

// Predict runs one forward pass over exactly InputLength tokens and returns
// the probability of every vocabulary index being the next word.
func (m *LSTM) Predict(ctx context.Context, tokens []int) ([]float64, error) {
	if len(tokens) != m.InputLength() {
		return nil, fmt.Errorf("%w: got %d tokens, want %d", ErrInputLength, len(tokens), m.InputLength())
	}
	seq := make([]*mat.VecDense, len(tokens))
	for t, tok := range tokens {
		if tok < 0 || tok >= m.cfg.VocabSize {
			return nil, fmt.Errorf("%w: %d at position %d", ErrTokenRange, tok, t)
		}
		seq[t] = mat.NewVecDense(m.cfg.EmbeddingDim, mat.Row(nil, tok, m.embedding))
	}

	for i := range m.layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seq = m.layers[i].forward(seq, i < len(m.layers)-1)
	}

	h := seq[len(seq)-1]
	logits := mat.NewVecDense(m.cfg.VocabSize, nil)
	logits.MulVec(m.denseW.T(), h)
	probs := logits.RawVector().Data
	for j := range probs {
		probs[j] += m.denseB[j]
	}
	tensor.Softmax(probs)
	return probs, nil
}

// forward runs the layer over the whole sequence from a zero state. With
// returnSequences it returns every hidden state, otherwise only the last.
func (l *lstmLayer) forward(xs []*mat.VecDense, returnSequences bool) []*mat.VecDense {
	u := l.units
	h := mat.NewVecDense(u, nil)
	c := make([]float64, u)
	z := mat.NewVecDense(4*u, nil)
	zr := mat.NewVecDense(4*u, nil)

	var out []*mat.VecDense
	if returnSequences {
		out = make([]*mat.VecDense, 0, len(xs))
	}
	for _, x := range xs {
		z.MulVec(l.kernel.T(), x)
		zr.MulVec(l.recurrent.T(), h)
		z.AddVec(z, zr)
		zd := z.RawVector().Data
		for j := range zd {
			zd[j] += l.bias[j]
		}
		in, forget, cand, outg := zd[:u], zd[u:2*u], zd[2*u:3*u], zd[3*u:]
		tensor.SigmoidInPlace(in)
		tensor.SigmoidInPlace(forget)
		tensor.TanhInPlace(cand)
		tensor.SigmoidInPlace(outg)

		next := mat.NewVecDense(u, nil)
		hd := next.RawVector().Data
		for j := range u {
			c[j] = forget[j]*c[j] + in[j]*cand[j]
			hd[j] = outg[j] * math.Tanh(c[j])
		}
		h = next
		if returnSequences {
			out = append(out, h)
		}
	}
	if !returnSequences {
		out = []*mat.VecDense{h}
	}
	return out
}
