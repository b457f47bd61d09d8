package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floatsEqual compares slices of float32
func floatsEqual(a, b []float32, epsilon float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if diff := a[i] - b[i]; diff > epsilon || diff < -epsilon {
			return false
		}
	}
	return true
}

func TestNormalizeVec(t *testing.T) {

	in := []float32{3, 4}
	out := NormalizeVec(in)

	assert.True(t, floatsEqual(out, []float32{0.6, 0.8}, 1e-6))
	assert.Equal(t, []float32{3, 4}, in, "input must not be modified")

	zero := NormalizeVec([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestDequantizeAndL2Normalize(t *testing.T) {

	// (q - z) * s = {3, 4} * 0.5
	out := DequantizeAndL2Normalize([]int8{5, 7}, 0.5, -1)
	assert.True(t, floatsEqual(out, []float32{0.6, 0.8}, 1e-6))

	// zero magnitude stays unnormalized
	out = DequantizeAndL2Normalize([]int8{2, 2}, 0.1, 2)
	assert.Equal(t, []float32{0, 0}, out)
}

func TestCompare(t *testing.T) {

	a := []float32{2, 2, 0}
	b := []float32{1, 1, 0}
	c := []float32{0, 0, 3}

	d, err := Compare(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d.Cosine, 1e-6)
	assert.InDelta(t, 0.0, d.CosineDistance, 1e-6)
	assert.InDelta(t, 0.0, d.Euclidean, 1e-6)

	d, err = Compare(a, c)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d.Cosine, 1e-6)
	assert.InDelta(t, 1.0, d.CosineDistance, 1e-6)
	assert.InDelta(t, math.Sqrt2, d.Euclidean, 1e-6)

	// inputs are left as given
	assert.Equal(t, []float32{2, 2, 0}, a)

	_, err = Compare(a, []float32{1, 0})
	require.ErrorIs(t, err, ErrShape)

	_, err = Compare(nil, nil)
	require.ErrorIs(t, err, ErrShape)
}

func TestFingerprintHash(t *testing.T) {

	h1 := FingerprintHash([]float32{1, 2}, []float32{3, 4})
	h2 := FingerprintHash([]float32{1, 2}, []float32{3, 4})
	h3 := FingerprintHash([]float32{1, 2, 3}, []float32{4})

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}
