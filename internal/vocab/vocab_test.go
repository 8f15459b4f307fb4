package vocab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := New(map[string]int{
		"he":    1,
		"could": 2,
		"have":  3,
		"been":  4,
		"the":   5,
		"end":   6,
	}, DefaultOptions())
	require.NoError(t, err)
	return v
}

func TestSequenceLowercasesAndFilters(t *testing.T) {
	t.Parallel()
	v := testVocab(t)

	assert.Equal(t, []int{1, 2, 3}, v.Sequence("He could have"))
	assert.Equal(t, []int{1, 2, 3}, v.Sequence("  He,   could!\thave\n"))
	assert.Equal(t, []int{5, 6, 1}, v.Sequence("the end.he"))
}

func TestSequenceDropsUnknownWords(t *testing.T) {
	t.Parallel()
	v := testVocab(t)

	assert.Equal(t, []int{1, 3}, v.Sequence("he zebra have"))
	assert.Empty(t, v.Sequence("zebra quokka"))
	assert.Empty(t, v.Sequence(""))
	assert.Empty(t, v.Sequence("?!..."))
}

func TestSequenceWithOOVToken(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.OOVToken = "<OOV>"
	v, err := New(map[string]int{"<OOV>": 1, "he": 2, "could": 3, "rare": 9}, opts)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 1, 3}, v.Sequence("he zebra could"))
	assert.False(t, v.Selectable(1), "oov token is never emitted")
	assert.True(t, v.Selectable(2))
}

func TestSequenceNumWordsLimit(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.NumWords = 3
	v, err := New(map[string]int{"he": 1, "could": 2, "have": 3}, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v.Sequence("he could have"))

	opts.OOVToken = "<OOV>"
	v, err = New(map[string]int{"<OOV>": 1, "he": 2, "have": 3}, opts)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, v.Sequence("he have"))
}

func TestCaseSensitiveTokenizer(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.Lower = false
	v, err := New(map[string]int{"He": 1}, opts)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, v.Sequence("He he"))
}

func TestLookupAndWord(t *testing.T) {
	t.Parallel()
	v := testVocab(t)

	i, err := v.Lookup("Could")
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	_, err = v.Lookup("zebra")
	require.ErrorIs(t, err, ErrUnknownWord)
	_, err = v.Lookup("he could")
	require.ErrorIs(t, err, ErrUnknownWord)

	w, ok := v.Word(4)
	assert.True(t, ok)
	assert.Equal(t, "been", w)
	_, ok = v.Word(0)
	assert.False(t, ok)
	assert.False(t, v.Selectable(Padding))
	assert.False(t, v.Selectable(99))

	assert.Equal(t, 6, v.Size())
	assert.Equal(t, 6, v.MaxIndex())
	assert.Equal(t, []string{"he", "could", "have", "been", "the", "end"}, v.Words())
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, DefaultOptions())
	assert.Error(t, err)
	_, err = New(map[string]int{"pad": 0}, DefaultOptions())
	assert.Error(t, err)
	_, err = New(map[string]int{"a": 1, "b": 1}, DefaultOptions())
	assert.Error(t, err)
	_, err = New(map[string]int{"": 1}, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.OOVToken = "<OOV>"
	_, err = New(map[string]int{"a": 1}, opts)
	assert.Error(t, err)
}

func kerasDocument(t *testing.T, wordIndex map[string]int, extra map[string]any) []byte {
	t.Helper()
	inner, err := json.Marshal(wordIndex)
	require.NoError(t, err)
	cfg := map[string]any{
		"num_words":  nil,
		"filters":    DefaultFilters,
		"lower":      true,
		"split":      " ",
		"char_level": false,
		"oov_token":  nil,
		"word_index": string(inner),
	}
	for k, val := range extra {
		cfg[k] = val
	}
	doc, err := json.Marshal(map[string]any{"class_name": "Tokenizer", "config": cfg})
	require.NoError(t, err)
	return doc
}

func TestParseKerasDocument(t *testing.T) {
	t.Parallel()

	data := kerasDocument(t, map[string]int{"the": 1, "cat": 2}, nil)
	v, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v.Sequence("The cat."))
}

func TestParseKerasObjectWordIndex(t *testing.T) {
	t.Parallel()

	data := kerasDocument(t, nil, map[string]any{
		"word_index": map[string]int{"<unk>": 1, "dog": 2},
		"oov_token":  "<unk>",
	})
	v, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "<unk>", v.OOVToken())
	assert.Equal(t, []int{2, 1}, v.Sequence("dog cat"))
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = Parse(kerasDocument(t, map[string]int{"a": 1}, map[string]any{"char_level": true}))
	assert.ErrorIs(t, err, ErrCharLevel)

	_, err = Parse([]byte(`{"class_name":"Tokenizer","config":{}}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"class_name":"TextVectorization","config":{}}`))
	assert.Error(t, err)
}

func TestLoadFlatFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hello": 1, "world": 2}`), 0o644))

	v, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v.Sequence("Hello, World!"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
