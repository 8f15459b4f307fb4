package inference

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samcharles93/nextword/internal/model"
	"github.com/samcharles93/nextword/internal/predict"
	"github.com/samcharles93/nextword/internal/similar"
	"github.com/samcharles93/nextword/internal/vocab"
)

var generation atomic.Uint64

// Loader reads the two artifacts a Bundle is made of.
type Loader struct {
	ModelPath string
	VocabPath string
}

func (l Loader) validate() error {
	if strings.TrimSpace(l.ModelPath) == "" {
		return fmt.Errorf("model path is required")
	}
	if strings.TrimSpace(l.VocabPath) == "" {
		return fmt.Errorf("vocabulary path is required")
	}
	return nil
}

// Paths returns the cleaned artifact paths.
func (l Loader) Paths() []string {
	return []string{filepath.Clean(l.ModelPath), filepath.Clean(l.VocabPath)}
}

// Load reads and cross-checks the model and vocabulary.
func (l Loader) Load() (*Bundle, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	m, err := model.Load(l.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", l.ModelPath, err)
	}
	v, err := vocab.Load(l.VocabPath)
	if err != nil {
		return nil, err
	}
	if v.MaxIndex() >= m.VocabSize() {
		return nil, fmt.Errorf("vocabulary index %d exceeds model output size %d", v.MaxIndex(), m.VocabSize())
	}

	return &Bundle{
		Model:      m,
		Vocab:      v,
		Predictor:  predict.New(m, v),
		Neighbors:  similar.New(m, v),
		ModelPath:  filepath.Clean(l.ModelPath),
		VocabPath:  filepath.Clean(l.VocabPath),
		LoadedAt:   time.Now(),
		Generation: generation.Add(1),
	}, nil
}
