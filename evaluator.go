package reideval

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Evaluator holds the similarity matrix, rankings and match mask computed
// from a set of query and gallery features.  All state is computed once by
// the constructor and never modified afterwards, so an Evaluator is safe for
// concurrent use.
type Evaluator struct {
	numQuery   int
	numGallery int
	// qLabels and gLabels are the labels split into query and gallery
	qLabels []Label
	gLabels []Label
	// distmat is the numQuery x numGallery cosine similarity matrix
	distmat *mat.Dense
	// indices holds for each query the gallery indices sorted by descending
	// similarity
	indices [][]int
	// matches marks for each query which ranked gallery item has the same
	// person id as the query
	matches [][]bool
}

// NewEvaluator builds an Evaluator from precomputed features.  The first
// numQuery labels and features are the queries, the remainder the gallery.
// Features must be finite and are L2 normalised before similarities are
// computed, the caller's slices are not modified.
func NewEvaluator(labels []Label, numQuery int, feats [][]float32) (*Evaluator, error) {

	total := len(feats)

	if len(labels) != total {
		return nil, fmt.Errorf("%w: %d labels for %d features", ErrInvalidSplit,
			len(labels), total)
	}

	if numQuery <= 0 || numQuery >= total {
		return nil, fmt.Errorf("%w: num query %d must be in range (0, %d)",
			ErrInvalidSplit, numQuery, total)
	}

	dim := len(feats[0])

	if dim == 0 {
		return nil, fmt.Errorf("%w: features have zero length", ErrInvalidArgument)
	}

	for i, f := range feats {
		if len(f) != dim {
			return nil, fmt.Errorf("%w: feature %d has length %d, expected %d",
				ErrInvalidArgument, i, len(f), dim)
		}

		for j, v := range f {
			if x := float64(v); math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: feature %d value %d is %v",
					ErrInvalidArgument, i, j, v)
			}
		}
	}

	e := &Evaluator{
		numQuery:   numQuery,
		numGallery: total - numQuery,
		qLabels:    slices.Clone(labels[:numQuery]),
		gLabels:    slices.Clone(labels[numQuery:]),
	}

	qf := normalizedMatrix(feats[:numQuery], dim)
	gf := normalizedMatrix(feats[numQuery:], dim)

	e.distmat = cosineMatrix(qf, gf)
	e.rank()

	return e, nil
}

// NewEvaluatorFromEmbedder runs the Embedder once over all items and builds
// an Evaluator from the returned features
func NewEvaluatorFromEmbedder(ctx context.Context, emb Embedder, items []string,
	labels []Label, numQuery int) (*Evaluator, error) {

	if len(items) != len(labels) {
		return nil, fmt.Errorf("%w: %d labels for %d items", ErrInvalidSplit,
			len(labels), len(items))
	}

	// check the split before paying for inference
	if numQuery <= 0 || numQuery >= len(items) {
		return nil, fmt.Errorf("%w: num query %d must be in range (0, %d)",
			ErrInvalidSplit, numQuery, len(items))
	}

	feats, err := emb.Embed(ctx, items)

	if err != nil {
		return nil, fmt.Errorf("error embedding items: %w", err)
	}

	if len(feats) != len(items) {
		return nil, fmt.Errorf("%w: embedder returned %d features for %d items",
			ErrInvalidSplit, len(feats), len(items))
	}

	return NewEvaluator(labels, numQuery, feats)
}

// normalizedMatrix copies the feature rows into a dense matrix and scales
// each row to unit length.  Zero rows are left as zero.
func normalizedMatrix(feats [][]float32, dim int) *mat.Dense {

	m := mat.NewDense(len(feats), dim, nil)

	for i, f := range feats {
		row := m.RawRowView(i)

		for j, v := range f {
			row[j] = float64(v)
		}

		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
	}

	return m
}

// cosineMatrix returns qf * gf^T for row normalised matrices
func cosineMatrix(qf, gf *mat.Dense) *mat.Dense {

	var dist mat.Dense
	dist.Mul(qf, gf.T())

	// rounding can push a normalised dot product just past +/-1
	raw := dist.RawMatrix()

	for i, v := range raw.Data {
		if v > 1 {
			raw.Data[i] = 1
		} else if v < -1 {
			raw.Data[i] = -1
		}
	}

	return &dist
}

// rank sorts the gallery for every query and fills the match mask.  Queries
// are split across workers which each handle rows w, w+numWorkers, ... and
// write disjoint slots of indices and matches.
func (e *Evaluator) rank() {

	e.indices = make([][]int, e.numQuery)
	e.matches = make([][]bool, e.numQuery)

	numWorkers := runtime.NumCPU()

	if numWorkers > e.numQuery {
		numWorkers = e.numQuery
	}

	var wg sync.WaitGroup
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(w int) {
			defer wg.Done()

			for i := w; i < e.numQuery; i += numWorkers {
				e.indices[i], e.matches[i] = e.rankQuery(i)
			}
		}(w)
	}

	wg.Wait()
}

// rankQuery returns the gallery order for query q, highest similarity first
// with ties kept in gallery index order, and the match flag per rank
func (e *Evaluator) rankQuery(q int) ([]int, []bool) {

	row := e.distmat.RawRowView(q)
	order := make([]int, e.numGallery)

	for j := range order {
		order[j] = j
	}

	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(row[b], row[a])
	})

	pid := e.qLabels[q].PersonID
	match := make([]bool, e.numGallery)

	for k, g := range order {
		match[k] = e.gLabels[g].PersonID == pid
	}

	return order, match
}

// NumQuery returns the number of query items
func (e *Evaluator) NumQuery() int {
	return e.numQuery
}

// NumGallery returns the number of gallery items
func (e *Evaluator) NumGallery() int {
	return e.numGallery
}

// QueryLabel returns the label of query q
func (e *Evaluator) QueryLabel(q int) (Label, error) {

	if err := e.checkQuery(q); err != nil {
		return Label{}, err
	}

	return e.qLabels[q], nil
}

// GalleryLabel returns the label of gallery item g
func (e *Evaluator) GalleryLabel(g int) (Label, error) {

	if err := e.checkGallery(g); err != nil {
		return Label{}, err
	}

	return e.gLabels[g], nil
}

// ItemIndex converts a gallery index into its position in the full item
// sequence the features and labels were given in
func (e *Evaluator) ItemIndex(g int) (int, error) {

	if err := e.checkGallery(g); err != nil {
		return 0, err
	}

	return e.numQuery + g, nil
}

// DistanceMatrix returns a copy of the numQuery x numGallery cosine
// similarity matrix
func (e *Evaluator) DistanceMatrix() *mat.Dense {
	return mat.DenseCopyOf(e.distmat)
}

// Similarity returns the cosine similarity between query q and gallery item g
func (e *Evaluator) Similarity(q, g int) (float64, error) {

	if err := e.checkQuery(q); err != nil {
		return 0, err
	}

	if err := e.checkGallery(g); err != nil {
		return 0, err
	}

	return e.distmat.At(q, g), nil
}

// Ranking returns a copy of the unfiltered gallery order for query q
func (e *Evaluator) Ranking(q int) ([]int, error) {

	if err := e.checkQuery(q); err != nil {
		return nil, err
	}

	return slices.Clone(e.indices[q]), nil
}

// Matches returns a copy of the unfiltered match flags for query q, aligned
// with Ranking
func (e *Evaluator) Matches(q int) ([]bool, error) {

	if err := e.checkQuery(q); err != nil {
		return nil, err
	}

	return slices.Clone(e.matches[q]), nil
}

// RankingForQuery returns the match flags and gallery indices for query q
// with the junk set removed, that is every gallery item sharing both person
// and camera id with the query.  Relative rank order is preserved.
func (e *Evaluator) RankingForQuery(q int) (cmc []bool, ranked []int, err error) {

	if err := e.checkQuery(q); err != nil {
		return nil, nil, err
	}

	cmc, ranked = e.filtered(q)

	return cmc, ranked, nil
}

// filtered drops junk gallery items from the ranking of query q.  Callers
// must have validated q.
func (e *Evaluator) filtered(q int) ([]bool, []int) {

	ql := e.qLabels[q]
	order := e.indices[q]

	cmc := make([]bool, 0, len(order))
	ranked := make([]int, 0, len(order))

	for k, g := range order {
		if e.gLabels[g] == ql {
			continue
		}

		cmc = append(cmc, e.matches[q][k])
		ranked = append(ranked, g)
	}

	return cmc, ranked
}

func (e *Evaluator) checkQuery(q int) error {

	if q < 0 || q >= e.numQuery {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, q, e.numQuery)
	}

	return nil
}

func (e *Evaluator) checkGallery(g int) error {

	if g < 0 || g >= e.numGallery {
		return fmt.Errorf("%w: gallery index %d not in [0, %d)", ErrIndexOutOfRange,
			g, e.numGallery)
	}

	return nil
}
