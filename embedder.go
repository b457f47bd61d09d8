package reideval

import (
	"context"
	"fmt"
)

// Embedder is the boundary to the ReID model.  Given the full ordered item
// sequence it returns one fixed length feature vector per item in the same
// order.
type Embedder interface {
	Embed(ctx context.Context, items []string) ([][]float32, error)
}

// MatrixEmbedder serves features that were extracted ahead of time.  Items
// are matched to rows by position.
type MatrixEmbedder struct {
	rows [][]float32
}

// NewMatrixEmbedder returns an Embedder over precomputed feature rows
func NewMatrixEmbedder(rows [][]float32) *MatrixEmbedder {
	return &MatrixEmbedder{rows: rows}
}

// Embed returns the precomputed rows, which must cover every item
func (m *MatrixEmbedder) Embed(ctx context.Context, items []string) ([][]float32, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(items) != len(m.rows) {
		return nil, fmt.Errorf("have %d feature rows for %d items", len(m.rows), len(items))
	}

	return m.rows, nil
}
