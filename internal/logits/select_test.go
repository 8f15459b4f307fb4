package logits

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestArgmax(t *testing.T) {
	t.Parallel()

	dist := []float64{0.1, 0.5, 0.2, 0.5, 0.2}
	got, ok := Argmax(dist, nil)
	if !ok {
		t.Fatal("expected a candidate")
	}
	if got.Index != 1 {
		t.Fatalf("expected first maximum at index 1, got %d", got.Index)
	}
}

func TestArgmaxRespectsAllow(t *testing.T) {
	t.Parallel()

	dist := []float64{0.9, 0.05, 0.05}
	got, ok := Argmax(dist, func(i int) bool { return i != 0 })
	if !ok {
		t.Fatal("expected a candidate")
	}
	if got.Index != 1 {
		t.Fatalf("expected index 1 once 0 is masked, got %d", got.Index)
	}

	if _, ok := Argmax(dist, func(int) bool { return false }); ok {
		t.Fatal("expected no candidate when everything is masked")
	}
	if _, ok := Argmax([]float64{0, 0}, nil); ok {
		t.Fatal("expected no candidate when nothing has mass")
	}
	if _, ok := Argmax(nil, nil); ok {
		t.Fatal("expected no candidate for empty distribution")
	}
}

func TestTopN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		dist  []float64
		n     int
		allow Allow
		want  []Candidate
	}{
		{
			name: "descending",
			dist: []float64{0.05, 0.4, 0.1, 0.3, 0.15},
			n:    3,
			want: []Candidate{{1, 0.4}, {3, 0.3}, {4, 0.15}},
		},
		{
			name: "ties keep index order",
			dist: []float64{0.2, 0.2, 0.2, 0.4},
			n:    3,
			want: []Candidate{{3, 0.4}, {0, 0.2}, {1, 0.2}},
		},
		{
			name: "n larger than vocabulary",
			dist: []float64{0.7, 0.3},
			n:    5,
			want: []Candidate{{0, 0.7}, {1, 0.3}},
		},
		{
			name:  "masked padding",
			dist:  []float64{0.6, 0.1, 0.3},
			n:     2,
			allow: func(i int) bool { return i != 0 },
			want:  []Candidate{{2, 0.3}, {1, 0.1}},
		},
		{
			name: "zero mass is never selected",
			dist: []float64{0, 0.5, 0, 0.5},
			n:    3,
			want: []Candidate{{1, 0.5}, {3, 0.5}},
		},
		{
			name: "zero n",
			dist: []float64{1},
			n:    0,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TopN(tt.dist, tt.n, tt.allow)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("TopN mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
