package predict

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/nextword/internal/vocab"
)

// stubModel returns whatever dist computes and records every input window.
type stubModel struct {
	inputLen int
	dist     func(tokens []int) []float64

	mu    sync.Mutex
	calls [][]int
}

func (m *stubModel) InputLength() int { return m.inputLen }

func (m *stubModel) Predict(ctx context.Context, tokens []int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls = append(m.calls, slices.Clone(tokens))
	m.mu.Unlock()
	return m.dist(tokens), nil
}

func (m *stubModel) Calls() [][]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

const modelVocab = 8 // index 7 is produced by the model but has no word

func testVocab(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.New(map[string]int{
		"he":    1,
		"could": 2,
		"have":  3,
		"been":  4,
		"the":   5,
		"end":   6,
	}, vocab.DefaultOptions())
	require.NoError(t, err)
	return v
}

// fixed puts most of the mass on index peak.
func fixed(peak int) func([]int) []float64 {
	return func([]int) []float64 {
		d := make([]float64, modelVocab)
		for i := range d {
			d[i] = 0.01
		}
		d[peak] = 1 - 0.01*float64(modelVocab-1)
		return d
	}
}

// chain predicts the word following the last token: he -> could -> have -> ...
func chain(tokens []int) []float64 {
	d := make([]float64, modelVocab)
	last := tokens[len(tokens)-1]
	d[last%6+1] = 0.9
	d[(last+1)%6+1] = 0.1
	return d
}

func TestUnrecognizedPromptSkipsModel(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 3, dist: fixed(3)}
	p := New(m, testVocab(t))

	_, err := p.Greedy(context.Background(), "zebra quokka!", 2)
	require.ErrorIs(t, err, ErrUnrecognizedInput)
	_, err = p.TopN(context.Background(), "   ", 2, 3)
	require.ErrorIs(t, err, ErrUnrecognizedInput)
	_, err = p.Encode("")
	require.ErrorIs(t, err, ErrUnrecognizedInput)

	assert.Empty(t, m.Calls())
}

func TestGreedyAppendsArgmaxPerStep(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 3, dist: fixed(4)}
	p := New(m, testVocab(t))

	for k := 1; k <= MaxWords; k++ {
		got, err := p.Greedy(context.Background(), "he could", k)
		require.NoError(t, err)
		assert.Equal(t, slices.Repeat([]string{"been"}, k), got.Words)
		assert.Equal(t, "he could "+strings.Repeat("been ", k)[:len("been ")*k-1], got.Text)
	}
	assert.Len(t, m.Calls(), 1+2+3+4+5)
}

func TestGreedyRetokenizesEachStep(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 3, dist: chain}
	p := New(m, testVocab(t))

	got, err := p.Greedy(context.Background(), "He", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"could", "have", "been", "the"}, got.Words)
	assert.Equal(t, "He could have been the", got.Text)
	assert.Equal(t, "could have been the", got.Continuation())
	assert.InDelta(t, 0.9, got.Probability, 1e-12)

	want := [][]int{
		{0, 0, 1},
		{0, 1, 2},
		{1, 2, 3},
		{2, 3, 4},
	}
	if diff := cmp.Diff(want, m.Calls()); diff != "" {
		t.Fatalf("model inputs mismatch (-want +got):\n%s", diff)
	}
}

func TestLongPromptKeepsNewestTokens(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 3, dist: fixed(6)}
	p := New(m, testVocab(t))

	window, err := p.Encode("he could have been the")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5}, window)

	_, err = p.Greedy(context.Background(), "he could have been the", 1)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{3, 4, 5}}, m.Calls())
}

func TestShortPromptIsLeftPadded(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 5, dist: fixed(6)}
	p := New(m, testVocab(t))

	window, err := p.Encode("zebra the")
	require.NoError(t, err)
	assert.Equal(t, []int{vocab.Padding, vocab.Padding, vocab.Padding, vocab.Padding, 5}, window)

	window, err = p.Encode("he could")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 2}, window)
}

func TestTopNBranches(t *testing.T) {
	t.Parallel()
	first := func(tokens []int) []float64 {
		d := make([]float64, modelVocab)
		// Distinct first-step ranking: have > been > the > end.
		d[3], d[4], d[5], d[6] = 0.4, 0.3, 0.2, 0.1
		return d
	}
	m := &stubModel{inputLen: 3, dist: func(tokens []int) []float64 {
		if tokens[len(tokens)-1] == 2 {
			return first(tokens)
		}
		return chain(tokens)
	}}
	p := New(m, testVocab(t))

	got, err := p.TopN(context.Background(), "he could", 3, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)

	want := []Completion{
		{Rank: 1, Prompt: "he could", Words: []string{"have", "been", "the"}, Text: "he could have been the", Probability: 0.4},
		{Rank: 2, Prompt: "he could", Words: []string{"been", "the", "end"}, Text: "he could been the end", Probability: 0.3},
		{Rank: 3, Prompt: "he could", Words: []string{"the", "end", "he"}, Text: "he could the end he", Probability: 0.2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("completions mismatch (-want +got):\n%s", diff)
	}
	// one shared first step, then two greedy steps per branch
	assert.Len(t, m.Calls(), 1+3*2)
}

func TestSelectionSkipsUnmappedIndices(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 3, dist: func([]int) []float64 {
		d := make([]float64, modelVocab)
		d[0], d[7], d[2], d[5] = 0.5, 0.3, 0.15, 0.05
		return d
	}}
	p := New(m, testVocab(t))

	got, err := p.Greedy(context.Background(), "he", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"could"}, got.Words)

	top, err := p.TopN(context.Background(), "he", 1, 3)
	require.NoError(t, err)
	require.Len(t, top, 2, "only two mapped indices carry mass")
	assert.Equal(t, []string{"could"}, top[0].Words)
	assert.Equal(t, []string{"the"}, top[1].Words)
}

func TestNoCandidate(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 3, dist: func([]int) []float64 {
		d := make([]float64, modelVocab)
		d[0], d[7] = 0.5, 0.5
		return d
	}}
	p := New(m, testVocab(t))

	_, err := p.Greedy(context.Background(), "he", 2)
	require.ErrorIs(t, err, ErrNoCandidate)
	_, err = p.TopN(context.Background(), "he", 2, 3)
	require.ErrorIs(t, err, ErrNoCandidate)
}

func TestInvalidArguments(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 3, dist: fixed(3)}
	p := New(m, testVocab(t))

	_, err := p.Greedy(context.Background(), "he", 0)
	require.ErrorIs(t, err, ErrInvalidWordCount)
	_, err = p.TopN(context.Background(), "he", 2, 0)
	require.ErrorIs(t, err, ErrInvalidTopN)
	assert.Empty(t, m.Calls())
}

func TestCancelledContextStopsDecoding(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 3, dist: fixed(3)}
	p := New(m, testVocab(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.TopN(ctx, "he", 3, 3)
	require.ErrorIs(t, err, context.Canceled)
}

type failingModel struct{ err error }

func (failingModel) InputLength() int { return 2 }
func (f failingModel) Predict(context.Context, []int) ([]float64, error) {
	if f.err == nil {
		panic("boom")
	}
	return nil, f.err
}

func TestModelErrorsPropagate(t *testing.T) {
	t.Parallel()
	boom := errors.New("weights gone")

	_, err := New(failingModel{err: boom}, testVocab(t)).Greedy(context.Background(), "he", 1)
	require.ErrorIs(t, err, boom)

	_, err = New(failingModel{}, testVocab(t)).Greedy(context.Background(), "he", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in Predict")
}

func TestRunBuildsPrediction(t *testing.T) {
	t.Parallel()
	m := &stubModel{inputLen: 3, dist: chain}
	p := New(m, testVocab(t))

	pred, err := p.Run(context.Background(), "stub", Request{Text: "  he  "})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pred.ID, "pred-"))
	assert.Equal(t, "stub", pred.Model)
	assert.Equal(t, "he", pred.Prompt)
	assert.Equal(t, DefaultWords, pred.Words)
	require.Len(t, pred.Completions, 2, "chain only gives mass to two words")
	for _, c := range pred.Completions {
		assert.Len(t, c.Words, DefaultWords)
	}
	assert.Equal(t, 1+2*(DefaultWords-1), pred.ForwardPasses)

	_, err = p.Run(context.Background(), "stub", Request{Text: "he", Words: MaxWords + 1})
	require.ErrorIs(t, err, ErrInvalidWordCount)
}

func TestRequestNormalizeAndKey(t *testing.T) {
	t.Parallel()

	r, err := Request{Text: "hi"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Request{Text: "hi", Words: DefaultWords, TopN: DefaultTopN}, r)

	for _, bad := range []Request{{Words: -1}, {Words: 6}, {TopN: -2}, {TopN: MaxTopN + 1}} {
		_, err := bad.Normalize()
		assert.Error(t, err, "%+v", bad)
	}

	assert.NoError(t, Request{Words: MaxWords, TopN: MaxTopN}.Validate())
	for _, bad := range []Request{{Words: 0, TopN: 1}, {Words: 1, TopN: 0}} {
		assert.Error(t, bad.Validate(), "explicit zero %+v", bad)
	}
	assert.ErrorIs(t, Request{TopN: 1}.Validate(), ErrInvalidWordCount)

	a := Request{Text: " he   could ", Words: 2, TopN: 3}
	b := Request{Text: "he could", Words: 2, TopN: 3}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), Request{Text: "he could", Words: 3, TopN: 3}.Key())
}
