// Package similar answers nearest-word queries over the model's embedding
// table using an HNSW graph with cosine distance.
package similar

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/coder/hnsw"

	"github.com/samcharles93/nextword/internal/vocab"
)

// MaxK bounds a single query.
const MaxK = 50

// ExactScanLimit is the index size up to which Nearest compares against every
// vector instead of walking the graph. The graph search is approximate and
// can miss true neighbours in small, dense vocabularies.
const ExactScanLimit = 2048

var ErrNoEmbedding = errors.New("word has no usable embedding")

// Embedder exposes embedding rows by vocabulary index.
type Embedder interface {
	Embedding(i int) ([]float64, error)
}

// Neighbor is one result of Nearest.
type Neighbor struct {
	Word     string  `json:"word"`
	Distance float32 `json:"distance"`
}

// Index is built on first use and is read-only afterwards.
type Index struct {
	emb        Embedder
	vocab      *vocab.Vocabulary
	exactLimit int

	once  sync.Once
	graph *hnsw.Graph[string]
	vecs  map[string][]float32
	err   error
}

func New(e Embedder, v *vocab.Vocabulary) *Index {
	return &Index{emb: e, vocab: v, exactLimit: ExactScanLimit}
}

// Nearest returns up to k words closest to word, excluding word itself,
// ordered by ascending cosine distance.
func (x *Index) Nearest(word string, k int) ([]Neighbor, error) {
	if k < 1 || k > MaxK {
		return nil, fmt.Errorf("k must be between 1 and %d, got %d", MaxK, k)
	}
	idx, err := x.vocab.Lookup(word)
	if err != nil {
		return nil, err
	}
	if err := x.build(); err != nil {
		return nil, err
	}
	key, _ := x.vocab.Word(idx)
	query, ok := x.vecs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoEmbedding, word)
	}

	var out []Neighbor
	if len(x.vecs) <= x.exactLimit {
		out = x.scan(key, query)
	} else {
		out = x.search(key, query, k)
	}
	slices.SortFunc(out, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Word, b.Word)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (x *Index) scan(key string, query []float32) []Neighbor {
	out := make([]Neighbor, 0, len(x.vecs))
	for w, vec := range x.vecs {
		if w == key {
			continue
		}
		out = append(out, Neighbor{Word: w, Distance: hnsw.CosineDistance(query, vec)})
	}
	return out
}

// search asks the graph for at least EfSearch candidates so the k best
// survive dropping the query word.
func (x *Index) search(key string, query []float32, k int) []Neighbor {
	n := min(max(k+1, x.graph.EfSearch), x.graph.Len())
	nodes := x.graph.Search(query, n)
	out := make([]Neighbor, 0, len(nodes))
	for _, node := range nodes {
		if node.Key == key {
			continue
		}
		out = append(out, Neighbor{Word: node.Key, Distance: hnsw.CosineDistance(query, node.Value)})
	}
	return out
}

// Len is the number of indexed words. It forces the build.
func (x *Index) Len() (int, error) {
	if err := x.build(); err != nil {
		return 0, err
	}
	return x.graph.Len(), nil
}

func (x *Index) build() error {
	x.once.Do(func() {
		g := hnsw.NewGraph[string]()
		g.Distance = hnsw.CosineDistance
		vecs := make(map[string][]float32)
		var nodes []hnsw.Node[string]
		for _, w := range x.vocab.Words() {
			i, _ := x.vocab.Index(w)
			if !x.vocab.Selectable(i) {
				continue
			}
			row, err := x.emb.Embedding(i)
			if err != nil {
				// indices past the model's output size have no row
				continue
			}
			vec, ok := toVector(row)
			if !ok {
				continue
			}
			vecs[w] = vec
			nodes = append(nodes, hnsw.MakeNode(w, vec))
		}
		if len(nodes) == 0 {
			x.err = fmt.Errorf("no embeddings to index")
			return
		}
		g.Add(nodes...)
		x.graph = g
		x.vecs = vecs
	})
	return x.err
}

// toVector narrows row to float32 and rejects all-zero rows, which have no
// cosine direction.
func toVector(row []float64) ([]float32, bool) {
	vec := make([]float32, len(row))
	nonZero := false
	for i, v := range row {
		vec[i] = float32(v)
		if vec[i] != 0 {
			nonZero = true
		}
	}
	return vec, nonZero
}
