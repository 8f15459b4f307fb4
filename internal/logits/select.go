// Package logits selects word indices from a next-word probability distribution.
package logits

// Candidate is one selectable index and its probability.
type Candidate struct {
	Index int
	Prob  float64
}

// Allow reports whether index i may be selected. A nil Allow admits every index.
type Allow func(i int) bool

// Argmax returns the most probable allowed index. Ties resolve to the lower
// index. Indices without probability mass are never returned, so ok is false
// when no allowed index has p > 0.
func Argmax(dist []float64, allow Allow) (best Candidate, ok bool) {
	best.Index = -1
	for i, p := range dist {
		if !selectable(i, p, allow) {
			continue
		}
		if best.Index < 0 || p > best.Prob {
			best = Candidate{Index: i, Prob: p}
		}
	}
	return best, best.Index >= 0
}

// TopN returns up to n allowed candidates with positive mass, most probable
// first, ties ordered by index. O(V*n) insertion pass.
func TopN(dist []float64, n int, allow Allow) []Candidate {
	if n <= 0 {
		return nil
	}
	top := make([]Candidate, 0, n+1)
	for i, p := range dist {
		if !selectable(i, p, allow) {
			continue
		}
		pos := len(top)
		for pos > 0 && top[pos-1].Prob < p {
			pos--
		}
		if pos >= n {
			continue
		}
		top = append(top, Candidate{})
		copy(top[pos+1:], top[pos:])
		top[pos] = Candidate{Index: i, Prob: p}
		if len(top) > n {
			top = top[:n]
		}
	}
	return top
}

// selectable rejects masked indices and zero or NaN probabilities.
func selectable(i int, p float64, allow Allow) bool {
	if !(p > 0) {
		return false
	}
	return allow == nil || allow(i)
}
