package model

import (
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/nextword/internal/safetensors"
	"github.com/samcharles93/nextword/internal/tensor"
)

// Tensor and metadata names in the weights file.
const (
	TensorEmbedding = "embedding"
	TensorDenseW    = "dense.kernel"
	TensorDenseB    = "dense.bias"

	MetaSequenceLength = "sequence_length"
	MetaName           = "name"
	MetaArchitecture   = "architecture"

	architectureLSTM = "lstm"
)

func kernelName(layer int) string    { return fmt.Sprintf("lstm.%d.kernel", layer) }
func recurrentName(layer int) string { return fmt.Sprintf("lstm.%d.recurrent_kernel", layer) }
func biasName(layer int) string      { return fmt.Sprintf("lstm.%d.bias", layer) }

// Load reads a model from a safetensors file. Layer shapes are inferred from
// the tensors; the decode window comes from the sequence_length metadata.
func Load(path string) (*LSTM, error) {
	f, err := safetensors.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	if arch := f.Metadata[MetaArchitecture]; arch != "" && arch != architectureLSTM {
		return nil, fmt.Errorf("unsupported architecture %q", arch)
	}
	window, err := strconv.Atoi(f.Metadata[MetaSequenceLength])
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", MetaSequenceLength, err)
	}

	embInfo, ok := f.Tensor(TensorEmbedding)
	if !ok || len(embInfo.Shape) != 2 {
		return nil, fmt.Errorf("tensor %s: missing or not 2-d", TensorEmbedding)
	}
	cfg := Config{
		Name:         f.Metadata[MetaName],
		Window:       window,
		VocabSize:    embInfo.Shape[0],
		EmbeddingDim: embInfo.Shape[1],
	}
	if cfg.Name == "" {
		cfg.Name = architectureLSTM
	}

	m := &LSTM{}
	embedding, err := f.ReadShaped(TensorEmbedding, cfg.VocabSize, cfg.EmbeddingDim)
	if err != nil {
		return nil, err
	}
	m.embedding = mat.NewDense(cfg.VocabSize, cfg.EmbeddingDim, tensor.Widen(embedding))

	in := cfg.EmbeddingDim
	for i := 0; ; i++ {
		info, ok := f.Tensor(kernelName(i))
		if !ok {
			break
		}
		if len(info.Shape) != 2 || info.Shape[1]%4 != 0 {
			return nil, fmt.Errorf("tensor %s: shape %v is not [in, 4*units]", kernelName(i), info.Shape)
		}
		units := info.Shape[1] / 4
		layer, err := readLayer(f, i, in, units)
		if err != nil {
			return nil, err
		}
		m.layers = append(m.layers, layer)
		cfg.Units = append(cfg.Units, units)
		in = units
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	denseW, err := f.ReadShaped(TensorDenseW, in, cfg.VocabSize)
	if err != nil {
		return nil, err
	}
	denseB, err := f.ReadShaped(TensorDenseB, cfg.VocabSize)
	if err != nil {
		return nil, err
	}
	m.denseW = mat.NewDense(in, cfg.VocabSize, tensor.Widen(denseW))
	m.denseB = tensor.Widen(denseB)
	m.cfg = cfg
	return m, nil
}

func readLayer(f *safetensors.File, i, in, units int) (lstmLayer, error) {
	kernel, err := f.ReadShaped(kernelName(i), in, 4*units)
	if err != nil {
		return lstmLayer{}, err
	}
	recurrent, err := f.ReadShaped(recurrentName(i), units, 4*units)
	if err != nil {
		return lstmLayer{}, err
	}
	bias, err := f.ReadShaped(biasName(i), 4*units)
	if err != nil {
		return lstmLayer{}, err
	}
	return lstmLayer{
		units:     units,
		kernel:    mat.NewDense(in, 4*units, tensor.Widen(kernel)),
		recurrent: mat.NewDense(units, 4*units, tensor.Widen(recurrent)),
		bias:      tensor.Widen(bias),
	}, nil
}

// Save writes the model in the layout Load expects.
func (m *LSTM) Save(path string) error {
	tensors := []safetensors.Tensor{
		denseTensor(TensorEmbedding, m.embedding),
	}
	for i, l := range m.layers {
		tensors = append(tensors,
			denseTensor(kernelName(i), l.kernel),
			denseTensor(recurrentName(i), l.recurrent),
			safetensors.Tensor{Name: biasName(i), Shape: []int{len(l.bias)}, Data: narrow(l.bias)},
		)
	}
	tensors = append(tensors,
		denseTensor(TensorDenseW, m.denseW),
		safetensors.Tensor{Name: TensorDenseB, Shape: []int{len(m.denseB)}, Data: narrow(m.denseB)},
	)
	meta := map[string]string{
		MetaSequenceLength: strconv.Itoa(m.cfg.Window),
		MetaName:           m.cfg.Name,
		MetaArchitecture:   architectureLSTM,
	}
	return safetensors.Write(path, tensors, meta)
}

func denseTensor(name string, d *mat.Dense) safetensors.Tensor {
	r, c := d.Dims()
	data := make([]float32, 0, r*c)
	for i := range r {
		for j := range c {
			data = append(data, float32(d.At(i, j)))
		}
	}
	return safetensors.Tensor{Name: name, Shape: []int{r, c}, Data: data}
}

func narrow(src []float64) []float32 {
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = float32(v)
	}
	return out
}
