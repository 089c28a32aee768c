package vector

import (
	"math"
	"testing"
)

func TestCosineSelf(t *testing.T) {
	v := []float32{0.3, -0.5, 0.2}
	if got := Cosine(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Cosine(v, v) = %v, want 1.0", got)
	}
}

func TestCosineZeroVector(t *testing.T) {
	v := []float32{0.3, -0.5, 0.2}
	zero := []float32{0, 0, 0}
	if got := Cosine(v, zero); got != 0.0 {
		t.Errorf("Cosine(v, zero) = %v, want 0.0", got)
	}
	if got := Cosine(nil, v); got != 0.0 {
		t.Errorf("Cosine(nil, v) = %v, want 0.0", got)
	}
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := Cosine(a, b); math.Abs(got) > 1e-9 {
		t.Errorf("Cosine(a, b) = %v, want 0", got)
	}
}

func TestCosineMismatchedLengths(t *testing.T) {
	// Shorter vector defines the comparison window.
	a := []float32{1, 0, 7}
	b := []float32{1, 0}
	if got := Cosine(a, b); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Cosine over common prefix = %v, want 1.0", got)
	}
}
