package reideval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateScenario(t *testing.T) {

	e := newScenario(t)

	// max rank clamps to the gallery size
	m, err := e.Evaluate(50)
	require.NoError(t, err)

	assert.Equal(t, 2, m.ValidQueries)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 1, 1}, m.CMC, epsilon)
	assert.InDelta(t, (1.0+1.0/3.0)/2, m.MAP, epsilon)

	assert.InDelta(t, 0.5, m.Rank(1), epsilon)
	assert.InDelta(t, 1.0, m.Rank(3), epsilon)
	assert.InDelta(t, 1.0, m.Rank(10), epsilon)
	assert.Zero(t, m.Rank(0))

	cmc, err := e.CMC(2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, cmc, epsilon)

	mAP, err := e.MeanAP()
	require.NoError(t, err)
	assert.InDelta(t, m.MAP, mAP, epsilon)
}

func TestEvaluateSkipsQueriesWithoutMatch(t *testing.T) {

	labels := []Label{
		{1, 1}, // q0, matched by g0
		{9, 1}, // q1, never in gallery
		{1, 2}, // g0
		{2, 1}, // g1
	}
	feats := [][]float32{{1, 0}, {0, 1}, {0, 1}, {1, 0}}

	e, err := NewEvaluator(labels, 2, feats)
	require.NoError(t, err)

	m, err := e.Evaluate(2)
	require.NoError(t, err)

	assert.Equal(t, 1, m.ValidQueries)
	assert.InDeltaSlice(t, []float64{0, 1}, m.CMC, epsilon)
	assert.InDelta(t, 0.5, m.MAP, epsilon)
}

func TestEvaluateErrors(t *testing.T) {

	e := newScenario(t)

	_, err := e.Evaluate(0)
	require.ErrorIs(t, err, ErrInvalidArgument)

	labels := []Label{{1, 1}, {2, 1}, {3, 1}}
	feats := [][]float32{{1, 0}, {0, 1}, {1, 1}}

	e, err = NewEvaluator(labels, 1, feats)
	require.NoError(t, err)

	_, err = e.Evaluate(5)
	require.ErrorIs(t, err, ErrEmptyResult)
}

func TestCMCMonotonic(t *testing.T) {

	e := randomEvaluator(t, 5, 30, 90, 10)

	cmc, err := e.CMC(20)
	require.NoError(t, err)
	require.Len(t, cmc, 20)

	for k := 1; k < len(cmc); k++ {
		assert.GreaterOrEqual(t, cmc[k], cmc[k-1])
		assert.LessOrEqual(t, cmc[k], 1.0)
	}
}
