package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/swdee/go-reideval"
	"github.com/swdee/go-reideval/config"
	"github.com/swdee/go-reideval/feature"
)

func compareCmd() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "compare ITEM ITEM",
		Short: "Score two items against each other",
		Long: `compare prints the cosine similarity, cosine distance and euclidean
distance between two items, given by their position in the feature file or
item list.`,
		Args: cobra.ExactArgs(2),
		RunE: runCompare,
	}

	addDataFlags(cmd)

	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {

	cfg, err := loadConfig(cmd)

	if err != nil {
		return err
	}

	applyDataFlags(cmd, cfg)

	idx := make([]int, len(args))

	for i, a := range args {
		if idx[i], err = strconv.Atoi(a); err != nil {
			return fmt.Errorf("invalid item index %q", a)
		}
	}

	logger := newLogger(cfg.Log)

	rows, err := loadPair(cmd.Context(), cfg, &logger, idx[0], idx[1])

	if err != nil {
		return err
	}

	d, err := feature.Compare(rows[0], rows[1])

	if err != nil {
		return err
	}

	return printDistances(cmd.OutOrStdout(), idx[0], idx[1], d)
}

// loadPair returns the features of items i and j, read from the feature
// file or embedded from the item list
func loadPair(ctx context.Context, cfg *config.Config, logger *zerolog.Logger,
	i, j int) ([][]float32, error) {

	if cfg.Data.Features != "" {

		feats, err := feature.Load(cfg.Data.Features)

		if err != nil {
			return nil, fmt.Errorf("error loading features: %w", err)
		}

		if err := checkItems(len(feats), i, j); err != nil {
			return nil, err
		}

		return [][]float32{feats[i], feats[j]}, nil
	}

	if cfg.Data.Items == "" {
		return nil, fmt.Errorf("one of data.features or data.items is required")
	}

	items, err := reideval.LoadItems(cfg.Data.Items)

	if err != nil {
		return nil, fmt.Errorf("error loading items: %w", err)
	}

	if err := checkItems(len(items), i, j); err != nil {
		return nil, err
	}

	emb, err := newEmbedder(cfg.Model, logger)

	if err != nil {
		return nil, err
	}

	defer emb.Close()

	return emb.Embed(ctx, []string{items[i], items[j]})
}

func checkItems(total int, idx ...int) error {

	for _, i := range idx {
		if i < 0 || i >= total {
			return fmt.Errorf("%w: item %d not in [0, %d)", reideval.ErrIndexOutOfRange,
				i, total)
		}
	}

	return nil
}

func printDistances(w io.Writer, i, j int, d feature.Distances) error {

	_, err := fmt.Fprintf(w, "items %d and %d\ncosine similarity  %.4f\n"+
		"cosine distance    %.4f\neuclidean distance %.4f\n",
		i, j, d.Cosine, d.CosineDistance, d.Euclidean)

	return err
}
