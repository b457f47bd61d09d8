package reideval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositiveNegativeScenario(t *testing.T) {

	e := newScenario(t)

	pos, neg, err := e.PositiveNegative()
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{1.0, 0.0}, pos, epsilon)
	assert.InDeltaSlice(t, []float64{0.0, 0.0, 0.6, 0.0}, neg, epsilon)
}

func TestSameDiffCameraScenario(t *testing.T) {

	e := newScenario(t)

	same, diff, err := e.SameDiffCamera()
	require.NoError(t, err)

	// junk items are the same camera population and are kept here
	assert.InDeltaSlice(t, []float64{0.8, 1.0}, same, epsilon)
	assert.InDeltaSlice(t, []float64{1.0, 0.0}, diff, epsilon)
}

func TestPositiveNegativeEmpty(t *testing.T) {

	t.Run("only junk left", func(t *testing.T) {
		labels := []Label{{1, 1}, {1, 1}, {1, 1}}
		feats := [][]float32{{1, 0}, {1, 0}, {0, 1}}

		e, err := NewEvaluator(labels, 1, feats)
		require.NoError(t, err)

		_, _, err = e.PositiveNegative()
		require.ErrorIs(t, err, ErrEmptyResult)
	})

	t.Run("no positives", func(t *testing.T) {
		labels := []Label{{1, 1}, {2, 1}, {3, 2}}
		feats := [][]float32{{1, 0}, {1, 0}, {0, 1}}

		e, err := NewEvaluator(labels, 1, feats)
		require.NoError(t, err)

		_, _, err = e.PositiveNegative()
		require.ErrorIs(t, err, ErrEmptyResult)

		_, _, err = e.SameDiffCamera()
		require.ErrorIs(t, err, ErrEmptyResult)
	})
}

func TestSameDiffCameraOneGroupEmpty(t *testing.T) {

	tests := []struct {
		name   string
		labels []Label
	}{
		{
			name:   "no same camera",
			labels: []Label{{1, 1}, {1, 2}, {2, 1}},
		},
		{
			name:   "no different camera",
			labels: []Label{{1, 1}, {1, 1}, {2, 2}},
		},
	}

	feats := [][]float32{{1, 0}, {1, 1}, {0, 1}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEvaluator(tt.labels, 1, feats)
			require.NoError(t, err)

			same, diff, err := e.SameDiffCamera()
			require.ErrorIs(t, err, ErrEmptyResult)
			assert.Nil(t, same)
			assert.Nil(t, diff)
		})
	}
}

func TestDistributionPathsDiffer(t *testing.T) {

	e := randomEvaluator(t, 11, 15, 50, 8)

	pos, _, err := e.PositiveNegative()
	require.NoError(t, err)

	same, diff, err := e.SameDiffCamera()
	require.NoError(t, err)

	// positives exclude same camera items, the camera split keeps them
	assert.Equal(t, len(diff), len(pos))
	assert.Equal(t, len(same)+len(diff), len(pos)+countJunk(t, e))
}

func countJunk(t *testing.T, e *Evaluator) int {
	t.Helper()

	n := 0

	for q := 0; q < e.NumQuery(); q++ {
		ql, err := e.QueryLabel(q)
		require.NoError(t, err)

		for g := 0; g < e.NumGallery(); g++ {
			if gl, _ := e.GalleryLabel(g); gl == ql {
				n++
			}
		}
	}

	return n
}
