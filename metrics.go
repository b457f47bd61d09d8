package reideval

import "fmt"

// Metrics are the standard ReID retrieval scores over junk filtered rankings
type Metrics struct {
	// CMC[k] is the share of valid queries with a true match within the
	// first k+1 results
	CMC []float64 `json:"cmc" yaml:"cmc"`
	// MAP is the mean average precision over valid queries
	MAP float64 `json:"map" yaml:"map"`
	// ValidQueries counts queries with at least one true match in the
	// gallery, the others are skipped
	ValidQueries int `json:"valid_queries" yaml:"valid_queries"`
}

// Rank returns the CMC score at rank r, counted from 1
func (m Metrics) Rank(r int) float64 {

	if r < 1 || len(m.CMC) == 0 {
		return 0
	}

	if r > len(m.CMC) {
		r = len(m.CMC)
	}

	return m.CMC[r-1]
}

// Evaluate computes the CMC curve up to maxRank and mAP.  maxRank is clamped
// to the gallery size.  It fails with ErrEmptyResult when no query has a true
// match left in the gallery.
func (e *Evaluator) Evaluate(maxRank int) (Metrics, error) {

	if maxRank <= 0 {
		return Metrics{}, fmt.Errorf("%w: max rank must be positive, got %d",
			ErrInvalidArgument, maxRank)
	}

	if maxRank > e.numGallery {
		maxRank = e.numGallery
	}

	curve := make([]float64, maxRank)
	var sumAP float64
	valid := 0

	for q := 0; q < e.numQuery; q++ {

		cmc, _ := e.filtered(q)
		first := firstHit(cmc)

		if first < 0 {
			// person does not appear in the gallery from another camera
			continue
		}

		valid++

		for k := first; k < maxRank; k++ {
			curve[k]++
		}

		sumAP += averagePrecision(cmc)
	}

	if valid == 0 {
		return Metrics{}, fmt.Errorf("%w: no query has a true match in the gallery",
			ErrEmptyResult)
	}

	for k := range curve {
		curve[k] /= float64(valid)
	}

	return Metrics{
		CMC:          curve,
		MAP:          sumAP / float64(valid),
		ValidQueries: valid,
	}, nil
}

// CMC returns the cumulative match characteristic up to maxRank
func (e *Evaluator) CMC(maxRank int) ([]float64, error) {

	m, err := e.Evaluate(maxRank)

	if err != nil {
		return nil, err
	}

	return m.CMC, nil
}

// MeanAP returns the mean average precision over all valid queries
func (e *Evaluator) MeanAP() (float64, error) {

	m, err := e.Evaluate(1)

	if err != nil {
		return 0, err
	}

	return m.MAP, nil
}

// firstHit returns the rank of the first true match or -1
func firstHit(cmc []bool) int {

	for k, hit := range cmc {
		if hit {
			return k
		}
	}

	return -1
}

// averagePrecision averages the precision at every rank holding a true match
func averagePrecision(cmc []bool) float64 {

	relevant := 0
	sumPrecision := 0.0

	for k, hit := range cmc {
		if hit {
			relevant++
			sumPrecision += float64(relevant) / float64(k+1)
		}
	}

	if relevant == 0 {
		return 0
	}

	return sumPrecision / float64(relevant)
}
