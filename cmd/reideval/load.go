package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/swdee/go-reideval"
	"github.com/swdee/go-reideval/config"
	"github.com/swdee/go-reideval/embed"
	"github.com/swdee/go-reideval/feature"
)

// captureEmbedder keeps the rows returned by the wrapped Embedder so the
// feature set can be fingerprinted
type captureEmbedder struct {
	reideval.Embedder
	rows [][]float32
}

func (c *captureEmbedder) Embed(ctx context.Context, items []string) ([][]float32, error) {

	rows, err := c.Embedder.Embed(ctx, items)
	c.rows = rows

	return rows, err
}

// loaded is an evaluator along with the fingerprint of its features
type loaded struct {
	eval        *reideval.Evaluator
	fingerprint string
}

// loadEvaluator builds the Evaluator from the feature file, or by running the
// model over the item images when no feature file is configured
func loadEvaluator(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*loaded, error) {

	labels, err := reideval.LoadLabels(cfg.Data.Labels)

	if err != nil {
		return nil, fmt.Errorf("error loading labels: %w", err)
	}

	if cfg.Data.Features != "" {

		feats, err := feature.Load(cfg.Data.Features)

		if err != nil {
			return nil, fmt.Errorf("error loading features: %w", err)
		}

		logger.Info().Str("file", cfg.Data.Features).Int("rows", len(feats)).
			Msg("features loaded")

		e, err := reideval.NewEvaluator(labels, cfg.Data.NumQuery, feats)

		if err != nil {
			return nil, err
		}

		return &loaded{eval: e, fingerprint: feature.FingerprintHash(feats...)}, nil
	}

	items, err := reideval.LoadItems(cfg.Data.Items)

	if err != nil {
		return nil, fmt.Errorf("error loading items: %w", err)
	}

	emb, err := newEmbedder(cfg.Model, logger)

	if err != nil {
		return nil, err
	}

	defer emb.Close()

	capture := &captureEmbedder{Embedder: emb}

	e, err := reideval.NewEvaluatorFromEmbedder(ctx, capture, items, labels,
		cfg.Data.NumQuery)

	if err != nil {
		return nil, err
	}

	return &loaded{eval: e, fingerprint: feature.FingerprintHash(capture.rows...)}, nil
}

func newEmbedder(m config.ModelConfig, logger *zerolog.Logger) (*embed.Embedder, error) {

	return embed.New(embed.Options{
		ModelFile:  m.File,
		ConfigFile: m.Config,
		Backend:    m.Backend,
		Target:     m.Target,
		Width:      m.Width,
		Height:     m.Height,
		BatchSize:  m.BatchSize,
		Workers:    m.Workers,
		Scale:      m.Scale,
		Mean:       m.Mean,
		SwapRB:     m.SwapRB,
	}, logger)
}
