package predict

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request is one prediction as the front ends submit it.
type Request struct {
	Text  string `json:"text"`
	Words int    `json:"words"`
	TopN  int    `json:"top_n"`
}

// Normalize fills zero Words and TopN with their defaults, then validates.
// Front ends that take explicit values call Validate instead so an explicit
// zero is rejected.
func (r Request) Normalize() (Request, error) {
	if r.Words == 0 {
		r.Words = DefaultWords
	}
	if r.TopN == 0 {
		r.TopN = DefaultTopN
	}
	return r, r.Validate()
}

// Validate checks Words against MinWords..MaxWords and TopN against 1..MaxTopN.
func (r Request) Validate() error {
	if r.Words < MinWords || r.Words > MaxWords {
		return fmt.Errorf("%w: words must be between %d and %d, got %d", ErrInvalidWordCount, MinWords, MaxWords, r.Words)
	}
	if r.TopN < 1 || r.TopN > MaxTopN {
		return fmt.Errorf("%w: top_n must be between 1 and %d, got %d", ErrInvalidTopN, MaxTopN, r.TopN)
	}
	return nil
}

// Key identifies equivalent requests. Prompts that tokenize the same way are
// not merged because the rendered prompt text differs.
func (r Request) Key() string {
	return fmt.Sprintf("%d|%d|%s", r.Words, r.TopN, strings.Join(strings.Fields(r.Text), " "))
}

// MaxTopN caps the number of branches a single request may start.
const MaxTopN = 10

// Prediction is the result of Run.
type Prediction struct {
	ID          string        `json:"id"`
	Model       string        `json:"model"`
	Prompt      string        `json:"prompt"`
	Words       int           `json:"words"`
	Completions []Completion  `json:"completions"`
	Created     time.Time     `json:"created"`
	Elapsed     time.Duration `json:"-"`
	// ForwardPasses counts model invocations across all branches.
	ForwardPasses int `json:"forward_passes"`
}

// ElapsedMillis is Elapsed in fractional milliseconds.
func (p *Prediction) ElapsedMillis() float64 {
	return float64(p.Elapsed.Microseconds()) / 1000
}

// Run validates req and decodes its top-N completions.
func (p *Predictor) Run(ctx context.Context, modelName string, req Request) (*Prediction, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	created := time.Now()
	completions, stats, err := p.topN(ctx, req.Text, req.Words, req.TopN)
	if err != nil {
		return nil, err
	}
	return &Prediction{
		ID:            "pred-" + uuid.NewString(),
		Model:         modelName,
		Prompt:        strings.TrimSpace(req.Text),
		Words:         req.Words,
		Completions:   completions,
		Created:       created,
		Elapsed:       stats.Duration,
		ForwardPasses: stats.ForwardPasses,
	}, nil
}
