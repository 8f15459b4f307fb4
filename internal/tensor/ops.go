// Package tensor holds the element-wise kernels used by the recurrent forward pass.
// Matrix products are delegated to gonum; everything here works on plain slices.
package tensor

import (
	"math"
)

// Sigmoid computes the logistic sigmoid activation.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// SigmoidInPlace applies Sigmoid to every element of x.
func SigmoidInPlace(x []float64) {
	for i, v := range x {
		x[i] = Sigmoid(v)
	}
}

// TanhInPlace applies tanh to every element of x.
func TanhInPlace(x []float64) {
	for i, v := range x {
		x[i] = math.Tanh(v)
	}
}

// Softmax turns x into a probability distribution in place.
// The max is subtracted first so large logits do not overflow.
func Softmax(x []float64) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for _, v := range x[1:] {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(v - maxv)
		x[i] = e
		sum += e
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / sum
	for i := range x {
		x[i] *= inv
	}
}

// Widen converts float32 weights to the float64 layout gonum expects.
func Widen(src []float32) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}
