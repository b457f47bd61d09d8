package reideval

import "fmt"

// PositiveNegative collects the similarity of every query to every non junk
// gallery item, split into positive (same person) and negative pairs.  It
// fails with ErrEmptyResult if a query has no gallery left after junk removal
// or if either group ends up empty.
func (e *Evaluator) PositiveNegative() (pos, neg []float64, err error) {

	pos = make([]float64, 0)
	neg = make([]float64, 0)

	for q := 0; q < e.numQuery; q++ {

		cmc, ranked := e.filtered(q)

		if len(ranked) == 0 {
			return nil, nil, fmt.Errorf("%w: query %d has no gallery after junk removal",
				ErrEmptyResult, q)
		}

		for k, g := range ranked {
			if cmc[k] {
				pos = append(pos, e.distmat.At(q, g))
			} else {
				neg = append(neg, e.distmat.At(q, g))
			}
		}
	}

	if len(pos) == 0 {
		return nil, nil, fmt.Errorf("%w: no positive pairs", ErrEmptyResult)
	}

	if len(neg) == 0 {
		return nil, nil, fmt.Errorf("%w: no negative pairs", ErrEmptyResult)
	}

	return pos, neg, nil
}

// SameDiffCamera collects the similarity of every query to the gallery items
// of the same person, split by whether the gallery item was taken by the same
// camera as the query.  Unlike PositiveNegative this walks the unfiltered
// ranking, as same person same camera items are exactly the ones of interest
// here.  It fails with ErrEmptyResult if either group is empty.
func (e *Evaluator) SameDiffCamera() (same, diff []float64, err error) {

	for q := 0; q < e.numQuery; q++ {

		ql := e.qLabels[q]

		for _, g := range e.indices[q] {

			gl := e.gLabels[g]

			if gl.PersonID != ql.PersonID {
				continue
			}

			if gl.CameraID == ql.CameraID {
				same = append(same, e.distmat.At(q, g))
			} else {
				diff = append(diff, e.distmat.At(q, g))
			}
		}
	}

	if len(same) == 0 {
		return nil, nil, fmt.Errorf("%w: no same camera pairs", ErrEmptyResult)
	}

	if len(diff) == 0 {
		return nil, nil, fmt.Errorf("%w: no different camera pairs", ErrEmptyResult)
	}

	return same, diff, nil
}
