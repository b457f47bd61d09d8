package reideval

import (
	"cmp"
	"fmt"
	"slices"
)

// DefaultTopK is the number of ranked results kept per query by TopErrors
const DefaultTopK = 5

// RankedQuery is the filtered top-k result of a single query
type RankedQuery struct {
	// Query is the query index
	Query int `json:"query" yaml:"query"`
	// Gallery holds the top-k gallery indices, best first
	Gallery []int `json:"gallery" yaml:"gallery"`
	// Similarity holds the cosine similarity of each gallery item
	Similarity []float64 `json:"similarity" yaml:"similarity"`
	// Correct flags which gallery items share the query's person id
	Correct []bool `json:"correct" yaml:"correct"`
}

// TopSimilarity returns the similarity of the best ranked gallery item
func (r RankedQuery) TopSimilarity() float64 {
	return r.Similarity[0]
}

// TopErrors splits queries on whether their top-1 result is a true match
type TopErrors struct {
	// Correct lists queries with a true top-1 match, lowest top-1
	// similarity first, so the closest calls lead
	Correct []RankedQuery `json:"correct" yaml:"correct"`
	// Incorrect lists queries with a false top-1 match, highest top-1
	// similarity first, so the most confident mistakes lead
	Incorrect []RankedQuery `json:"incorrect" yaml:"incorrect"`
}

// TopErrors returns the filtered top-5 of every query split into correct and
// incorrect lists.  A new value is computed on every call.
func (e *Evaluator) TopErrors() (*TopErrors, error) {
	return e.TopErrorsK(DefaultTopK)
}

// TopErrorsK is TopErrors keeping k ranked results per query.  It fails with
// ErrEmptyResult if any query has fewer than k results left after junk
// removal.
func (e *Evaluator) TopErrorsK(k int) (*TopErrors, error) {

	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidArgument, k)
	}

	res := &TopErrors{
		Correct:   make([]RankedQuery, 0),
		Incorrect: make([]RankedQuery, 0),
	}

	for q := 0; q < e.numQuery; q++ {

		cmc, ranked := e.filtered(q)

		if len(ranked) < k {
			return nil, fmt.Errorf("%w: query %d has %d results after junk removal, need %d",
				ErrEmptyResult, q, len(ranked), k)
		}

		item := RankedQuery{
			Query:      q,
			Gallery:    slices.Clone(ranked[:k]),
			Similarity: make([]float64, k),
			Correct:    slices.Clone(cmc[:k]),
		}

		for i, g := range item.Gallery {
			item.Similarity[i] = e.distmat.At(q, g)
		}

		if item.Correct[0] {
			res.Correct = append(res.Correct, item)
		} else {
			res.Incorrect = append(res.Incorrect, item)
		}
	}

	slices.SortStableFunc(res.Correct, func(a, b RankedQuery) int {
		return cmp.Compare(a.TopSimilarity(), b.TopSimilarity())
	})

	slices.SortStableFunc(res.Incorrect, func(a, b RankedQuery) int {
		return cmp.Compare(b.TopSimilarity(), a.TopSimilarity())
	})

	return res, nil
}
