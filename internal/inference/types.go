package inference

import (
	"context"
	"time"

	"github.com/samcharles93/nextword/internal/model"
	"github.com/samcharles93/nextword/internal/predict"
	"github.com/samcharles93/nextword/internal/similar"
	"github.com/samcharles93/nextword/internal/vocab"
)

// Bundle is one loaded model with its vocabulary. It is immutable and shared
// by every request that obtained it.
type Bundle struct {
	Model     *model.LSTM
	Vocab     *vocab.Vocabulary
	Predictor *predict.Predictor
	Neighbors *similar.Index

	ModelPath  string
	VocabPath  string
	LoadedAt   time.Time
	// Generation is unique per successful Load in this process.
	Generation uint64
}

// Predict runs req against the bundle.
func (b *Bundle) Predict(ctx context.Context, req predict.Request) (*predict.Prediction, error) {
	return b.Predictor.Run(ctx, b.Model.Config().Name, req)
}

// Info summarises the bundle for the model endpoint and the inspect command.
type Info struct {
	Name         string    `json:"name"`
	Window       int       `json:"window"`
	InputLength  int       `json:"input_length"`
	VocabSize    int       `json:"vocab_size"`
	Words        int       `json:"words"`
	EmbeddingDim int       `json:"embedding_dim"`
	Units        []int     `json:"lstm_units"`
	Params       int       `json:"params"`
	OOVToken     string    `json:"oov_token,omitempty"`
	ModelPath    string    `json:"model_path"`
	VocabPath    string    `json:"vocab_path"`
	LoadedAt     time.Time `json:"loaded_at"`
}

func (b *Bundle) Info() Info {
	cfg := b.Model.Config()
	return Info{
		Name:         cfg.Name,
		Window:       cfg.Window,
		InputLength:  cfg.InputLength(),
		VocabSize:    cfg.VocabSize,
		Words:        b.Vocab.Size(),
		EmbeddingDim: cfg.EmbeddingDim,
		Units:        cfg.Units,
		Params:       cfg.Params(),
		OOVToken:     b.Vocab.OOVToken(),
		ModelPath:    b.ModelPath,
		VocabPath:    b.VocabPath,
		LoadedAt:     b.LoadedAt,
	}
}
