// Package feature holds helpers for ReID feature vectors and the binary
// feature file format used to hand features between extraction and
// evaluation.
package feature

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
)

// DequantizeAndL2Normalize converts a quantized int8 vector "q" into a float32 vector,
// applies dequantization using the provided scale "s" and zero-point "z",
// and then normalizes the result to unit length.
//
// If the resulting vector has zero magnitude, the function returns the
// unnormalized dequantized vector.
func DequantizeAndL2Normalize(q []int8, s float32, z int32) []float32 {

	x := make([]float32, len(q))

	for i, v := range q {
		x[i] = float32(int32(v)-z) * s
	}

	return normalizeInPlace(x)
}

// NormalizeVec returns a unit length copy of v.  A zero vector is returned
// as a zeroed copy.
func NormalizeVec(v []float32) []float32 {

	out := make([]float32, len(v))
	copy(out, v)

	return normalizeInPlace(out)
}

func normalizeInPlace(x []float32) []float32 {

	var sumSquares float64

	for _, v := range x {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		// avoid /0
		return x
	}

	norm := float32(math.Sqrt(sumSquares))

	for i := range x {
		x[i] /= norm
	}

	return x
}

// Distances compares two feature vectors after L2 normalising both
type Distances struct {
	// Cosine is the cosine similarity in [-1, 1]
	Cosine float64 `json:"cosine" yaml:"cosine"`
	// CosineDistance is 1 - Cosine, small values mean the same person
	CosineDistance float64 `json:"cosine_distance" yaml:"cosine_distance"`
	// Euclidean is the L2 distance between the unit vectors
	Euclidean float64 `json:"euclidean" yaml:"euclidean"`
}

// Compare returns the similarity measures between a and b.  The vectors are
// normalised into copies, the inputs are not modified.
func Compare(a, b []float32) (Distances, error) {

	if len(a) == 0 || len(a) != len(b) {
		return Distances{}, fmt.Errorf("%w: cannot compare lengths %d and %d",
			ErrShape, len(a), len(b))
	}

	na := NormalizeVec(a)
	nb := NormalizeVec(b)

	var dot, sum float64

	for i := range na {
		dot += float64(na[i]) * float64(nb[i])
		d := float64(na[i]) - float64(nb[i])
		sum += d * d
	}

	dot = max(-1, min(1, dot))

	return Distances{
		Cosine:         dot,
		CosineDistance: 1 - dot,
		Euclidean:      math.Sqrt(sum),
	}, nil
}

// FingerprintHash returns a hex-encoded SHA-256 hash over the little endian
// binary form of the given feature rows.  It identifies a feature set so
// evaluation runs over the same features can be matched up.
func FingerprintHash(rows ...[]float32) string {

	h := sha256.New()

	for _, row := range rows {
		writeRowHash(h, row)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeRowHash(h hash.Hash, row []float32) {

	buf := make([]byte, 4*len(row)+4)

	// length prefix so row boundaries change the hash
	binary.LittleEndian.PutUint32(buf, uint32(len(row)))

	for i, v := range row {
		binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(v))
	}

	h.Write(buf)
}
