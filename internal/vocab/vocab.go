// Package vocab implements the word-level lookup table the language model was
// trained with. It reads the JSON written by a Keras Tokenizer (to_json) or a
// flat {"word": index} object, and reproduces texts_to_sequences so prompts
// map to the same indices the model saw during training.
package vocab

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// DefaultFilters is the Keras Tokenizer default filter set.
const DefaultFilters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

// Padding is the reserved index used to left-pad token windows. It never maps to a word.
const Padding = 0

var (
	ErrUnknownWord = errors.New("unknown word")
	ErrCharLevel   = errors.New("char-level tokenizers are not supported")
)

// Vocabulary maps words to indices and back. It is immutable after load and
// safe for concurrent use.
type Vocabulary struct {
	wordIndex map[string]int
	indexWord map[int]string
	filters   map[rune]struct{}
	lower     bool
	split     string
	numWords  int
	oovToken  string
	oovIndex  int
	maxIndex  int
}

// Options mirrors the Keras Tokenizer settings that affect tokenization.
type Options struct {
	Filters  string
	Lower    bool
	Split    string
	NumWords int
	OOVToken string
}

// DefaultOptions returns the Keras Tokenizer defaults.
func DefaultOptions() Options {
	return Options{
		Filters: DefaultFilters,
		Lower:   true,
		Split:   " ",
	}
}

// New builds a Vocabulary from a word index. Indices must be positive and unique.
func New(wordIndex map[string]int, opts Options) (*Vocabulary, error) {
	if len(wordIndex) == 0 {
		return nil, fmt.Errorf("word index is empty")
	}
	if opts.Split == "" {
		opts.Split = " "
	}
	v := &Vocabulary{
		wordIndex: make(map[string]int, len(wordIndex)),
		indexWord: make(map[int]string, len(wordIndex)),
		filters:   make(map[rune]struct{}, len(opts.Filters)),
		lower:     opts.Lower,
		split:     opts.Split,
		numWords:  opts.NumWords,
		oovToken:  opts.OOVToken,
	}
	for _, r := range opts.Filters {
		v.filters[r] = struct{}{}
	}
	for word, idx := range wordIndex {
		if word == "" {
			return nil, fmt.Errorf("word index contains an empty word")
		}
		if idx <= Padding {
			return nil, fmt.Errorf("word %q: index %d is reserved", word, idx)
		}
		if prev, dup := v.indexWord[idx]; dup {
			return nil, fmt.Errorf("index %d assigned to both %q and %q", idx, prev, word)
		}
		v.wordIndex[word] = idx
		v.indexWord[idx] = word
		v.maxIndex = max(v.maxIndex, idx)
	}
	if opts.OOVToken != "" {
		idx, ok := v.wordIndex[opts.OOVToken]
		if !ok {
			return nil, fmt.Errorf("oov token %q missing from word index", opts.OOVToken)
		}
		v.oovIndex = idx
	}
	return v, nil
}

// Load reads a vocabulary file from disk.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	return v, nil
}

// Sequence converts text into word indices the way Keras texts_to_sequences
// does for a single text. Words that cannot be mapped are dropped, unless an
// OOV token is configured.
func (v *Vocabulary) Sequence(text string) []int {
	words := v.Split(text)
	seq := make([]int, 0, len(words))
	for _, w := range words {
		idx, ok := v.wordIndex[w]
		switch {
		case ok && v.numWords > 0 && idx >= v.numWords:
			if v.oovIndex != 0 {
				seq = append(seq, v.oovIndex)
			}
		case ok:
			seq = append(seq, idx)
		case v.oovIndex != 0:
			seq = append(seq, v.oovIndex)
		}
	}
	return seq
}

// Split applies lowercasing and the filter set, then splits on the separator,
// dropping empty pieces.
func (v *Vocabulary) Split(text string) []string {
	if v.lower {
		text = strings.ToLower(text)
	}
	if len(v.filters) > 0 {
		text = v.replaceFilters(text)
	}
	var words []string
	for piece := range strings.SplitSeq(text, v.split) {
		if piece != "" {
			words = append(words, piece)
		}
	}
	return words
}

// replaceFilters swaps every filtered rune for the split string so that
// "end.start" splits into two words rather than merging.
func (v *Vocabulary) replaceFilters(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if _, ok := v.filters[r]; ok {
			b.WriteString(v.split)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Word returns the word for index i.
func (v *Vocabulary) Word(i int) (string, bool) {
	w, ok := v.indexWord[i]
	return w, ok
}

// Index returns the index for word w as stored (no normalisation).
func (v *Vocabulary) Index(w string) (int, bool) {
	i, ok := v.wordIndex[w]
	return i, ok
}

// Lookup normalises w the same way Sequence does and returns its index.
func (v *Vocabulary) Lookup(w string) (int, error) {
	words := v.Split(w)
	if len(words) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWord, w)
	}
	i, ok := v.wordIndex[words[0]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWord, w)
	}
	return i, nil
}

// Selectable reports whether index i may be emitted as a predicted word:
// it must map to a word and must not be the OOV token.
func (v *Vocabulary) Selectable(i int) bool {
	if i == Padding || (v.oovIndex != 0 && i == v.oovIndex) {
		return false
	}
	_, ok := v.indexWord[i]
	return ok
}

// Size is the number of words in the table.
func (v *Vocabulary) Size() int { return len(v.wordIndex) }

// MaxIndex is the largest index in the table.
func (v *Vocabulary) MaxIndex() int { return v.maxIndex }

// OOVToken returns the configured out-of-vocabulary token, if any.
func (v *Vocabulary) OOVToken() string { return v.oovToken }

// Words returns every word ordered by index.
func (v *Vocabulary) Words() []string {
	idx := make([]int, 0, len(v.indexWord))
	for i := range v.indexWord {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	out := make([]string, len(idx))
	for n, i := range idx {
		out[n] = v.indexWord[i]
	}
	return out
}

// kerasTokenizer is the document produced by keras Tokenizer.to_json().
// Several config values are JSON encoded a second time as strings.
type kerasTokenizer struct {
	ClassName string `json:"class_name"`
	Config    struct {
		NumWords  *int            `json:"num_words"`
		Filters   *string         `json:"filters"`
		Lower     *bool           `json:"lower"`
		Split     *string         `json:"split"`
		CharLevel bool            `json:"char_level"`
		OOVToken  *string         `json:"oov_token"`
		WordIndex json.RawMessage `json:"word_index"`
	} `json:"config"`
}

// Parse decodes either a Keras tokenizer document or a flat word index.
func Parse(data []byte) (*Vocabulary, error) {
	var doc kerasTokenizer
	if err := json.Unmarshal(data, &doc); err == nil && doc.ClassName != "" {
		return parseKeras(doc)
	}

	var flat map[string]int
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("expected keras tokenizer json or {word: index} object: %w", err)
	}
	return New(flat, DefaultOptions())
}

func parseKeras(doc kerasTokenizer) (*Vocabulary, error) {
	if doc.ClassName != "Tokenizer" {
		return nil, fmt.Errorf("unsupported class %q", doc.ClassName)
	}
	cfg := doc.Config
	if cfg.CharLevel {
		return nil, ErrCharLevel
	}

	wordIndex, err := decodeNested(cfg.WordIndex)
	if err != nil {
		return nil, fmt.Errorf("word_index: %w", err)
	}

	opts := DefaultOptions()
	if cfg.Filters != nil {
		opts.Filters = *cfg.Filters
	}
	if cfg.Lower != nil {
		opts.Lower = *cfg.Lower
	}
	if cfg.Split != nil {
		opts.Split = *cfg.Split
	}
	if cfg.NumWords != nil {
		opts.NumWords = *cfg.NumWords
	}
	if cfg.OOVToken != nil {
		opts.OOVToken = *cfg.OOVToken
	}
	return New(wordIndex, opts)
}

// decodeNested accepts word_index either as an object or as a string holding
// the JSON object, which is what to_json emits.
func decodeNested(raw json.RawMessage) (map[string]int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("missing")
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		raw = json.RawMessage(inner)
	}
	var out map[string]int
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
