// Package predict turns a prompt into continuations by running the language
// model one word at a time. Each step re-tokenizes the running text, keeps the
// newest InputLength tokens, left-pads them with the padding index and picks
// the next word from the model's distribution.
package predict

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/nextword/internal/logits"
	"github.com/samcharles93/nextword/internal/vocab"
)

// Word count bounds shared by every front end.
const (
	MinWords     = 1
	MaxWords     = 5
	DefaultWords = 3
	DefaultTopN  = 3
)

var (
	ErrUnrecognizedInput = errors.New("unrecognized input")
	ErrNoCandidate       = errors.New("no selectable word in distribution")
	ErrInvalidWordCount  = errors.New("invalid word count")
	ErrInvalidTopN       = errors.New("invalid top-n")
)

// UnknownWordsWarning is what front ends show for ErrUnrecognizedInput.
const UnknownWordsWarning = "Unable to predict due to unknown words."

// Model is the forward pass the decoder drives. Implementations must accept
// exactly InputLength tokens and be safe for concurrent use.
type Model interface {
	Predict(ctx context.Context, tokens []int) ([]float64, error)
	InputLength() int
}

// Completion is one continuation of a prompt.
type Completion struct {
	Rank int `json:"rank"`
	// Prompt is the trimmed input text.
	Prompt string `json:"prompt"`
	// Words holds only the predicted words, in order.
	Words []string `json:"words"`
	// Text is Prompt followed by Words, space separated.
	Text string `json:"text"`
	// Probability of the first predicted word.
	Probability float64 `json:"probability"`
}

// Continuation returns the predicted words joined by spaces.
func (c Completion) Continuation() string { return strings.Join(c.Words, " ") }

// Stats reports the work one decode did.
type Stats struct {
	ForwardPasses int
	Duration      time.Duration
}

// Predictor decodes prompts against one model and vocabulary. It holds no
// mutable state and may be shared.
type Predictor struct {
	model Model
	vocab *vocab.Vocabulary
}

func New(m Model, v *vocab.Vocabulary) *Predictor {
	return &Predictor{model: m, vocab: v}
}

// Vocabulary returns the table used for tokenization.
func (p *Predictor) Vocabulary() *vocab.Vocabulary { return p.vocab }

// Encode tokenizes text into the fixed-length model input: the newest
// InputLength tokens, left-padded with vocab.Padding. It fails with
// ErrUnrecognizedInput when no word of text is in the vocabulary.
func (p *Predictor) Encode(text string) ([]int, error) {
	seq := p.vocab.Sequence(text)
	if len(seq) == 0 {
		return nil, ErrUnrecognizedInput
	}
	n := p.model.InputLength()
	if len(seq) > n {
		seq = seq[len(seq)-n:]
	}
	window := make([]int, n)
	// vocab.Padding is zero, so the head of window is already padded.
	copy(window[n-len(seq):], seq)
	return window, nil
}

// Greedy extends text by words, always taking the most probable word.
func (p *Predictor) Greedy(ctx context.Context, text string, words int) (Completion, error) {
	if words < MinWords {
		return Completion{}, fmt.Errorf("%w: %d", ErrInvalidWordCount, words)
	}
	var stats Stats
	probs, err := p.distribution(ctx, text, &stats)
	if err != nil {
		return Completion{}, err
	}
	first, ok := logits.Argmax(probs, p.vocab.Selectable)
	if !ok {
		return Completion{}, ErrNoCandidate
	}
	return p.extend(ctx, text, first, words, &stats)
}

// TopN returns up to n completions. The n most probable first words start n
// branches; every branch then continues greedily. Branches run concurrently
// and come back ordered by rank.
func (p *Predictor) TopN(ctx context.Context, text string, words, n int) ([]Completion, error) {
	out, _, err := p.topN(ctx, text, words, n)
	return out, err
}

func (p *Predictor) topN(ctx context.Context, text string, words, n int) ([]Completion, Stats, error) {
	var stats Stats
	if words < MinWords {
		return nil, stats, fmt.Errorf("%w: %d", ErrInvalidWordCount, words)
	}
	if n < 1 {
		return nil, stats, fmt.Errorf("%w: %d", ErrInvalidTopN, n)
	}
	start := time.Now()
	probs, err := p.distribution(ctx, text, &stats)
	if err != nil {
		return nil, stats, err
	}
	firsts := logits.TopN(probs, n, p.vocab.Selectable)
	if len(firsts) == 0 {
		return nil, stats, ErrNoCandidate
	}

	out := make([]Completion, len(firsts))
	branchStats := make([]Stats, len(firsts))
	g, gctx := errgroup.WithContext(ctx)
	for i, first := range firsts {
		g.Go(func() error {
			c, err := p.extend(gctx, text, first, words, &branchStats[i])
			if err != nil {
				return fmt.Errorf("branch %d: %w", i+1, err)
			}
			c.Rank = i + 1
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}
	for _, s := range branchStats {
		stats.ForwardPasses += s.ForwardPasses
	}
	stats.Duration = time.Since(start)
	return out, stats, nil
}

// extend appends first to text and then decodes greedily until the
// completion holds words predicted words.
func (p *Predictor) extend(ctx context.Context, text string, first logits.Candidate, words int, stats *Stats) (Completion, error) {
	prompt := strings.TrimSpace(text)
	c := Completion{
		Rank:        1,
		Prompt:      prompt,
		Words:       make([]string, 0, words),
		Probability: first.Prob,
	}
	running := prompt
	next := first
	for {
		w, ok := p.vocab.Word(next.Index)
		if !ok {
			return Completion{}, fmt.Errorf("%w: index %d", ErrNoCandidate, next.Index)
		}
		c.Words = append(c.Words, w)
		running += " " + w
		if len(c.Words) == words {
			break
		}
		if err := ctx.Err(); err != nil {
			return Completion{}, err
		}
		probs, err := p.distribution(ctx, running, stats)
		if err != nil {
			return Completion{}, err
		}
		next, ok = logits.Argmax(probs, p.vocab.Selectable)
		if !ok {
			return Completion{}, ErrNoCandidate
		}
	}
	c.Text = strings.TrimSpace(running)
	return c, nil
}

// distribution runs one forward pass over the encoded text.
func (p *Predictor) distribution(ctx context.Context, text string, stats *Stats) ([]float64, error) {
	window, err := p.Encode(text)
	if err != nil {
		return nil, err
	}
	probs, err := safePredict(ctx, p.model, window)
	if err != nil {
		return nil, fmt.Errorf("forward pass: %w", err)
	}
	stats.ForwardPasses++
	return probs, nil
}

func safePredict(ctx context.Context, m Model, window []int) (probs []float64, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Predict: %v", rec)
		}
	}()
	return m.Predict(ctx, window)
}
