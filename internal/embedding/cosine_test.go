package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSelfSimilarity(t *testing.T) {
	v := []float32{0.3, -0.7, 1.2, 0.01}
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-9)
}

func TestCosineSymmetry(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-4, 0.5, 2}
	assert.Equal(t, Cosine(a, b), Cosine(b, a))
}

func TestCosineOrthogonal(t *testing.T) {
	assert.InDelta(t, 0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestCosineOpposite(t *testing.T) {
	assert.InDelta(t, -1, Cosine([]float32{2, 0}, []float32{-5, 0}), 1e-9)
}

func TestCosineDegenerateInputsReturnZero(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
	}{
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}},
		{"empty left", nil, []float32{1}},
		{"empty right", []float32{1}, nil},
		{"both empty", nil, nil},
		{"zero norm left", []float32{0, 0}, []float32{1, 1}},
		{"zero norm right", []float32{1, 1}, []float32{0, 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Cosine(tc.a, tc.b)
			assert.Equal(t, 0.0, got)
			assert.False(t, math.IsNaN(got))
		})
	}
}
