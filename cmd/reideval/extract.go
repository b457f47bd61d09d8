package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/swdee/go-reideval"
	"github.com/swdee/go-reideval/feature"
)

func extractCmd() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract features for an image list and save them to a feature file",
		RunE:  runExtract,
	}

	cmd.Flags().String("items", "", "image list, one path per line")
	cmd.Flags().StringP("output", "o", "features.bin", "feature file to write")
	cmd.Flags().String("dtype", "float32", "stored element type (float32, float16, int8)")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {

	cfg, err := loadConfig(cmd)

	if err != nil {
		return err
	}

	if cmd.Flags().Changed("items") {
		cfg.Data.Items, _ = cmd.Flags().GetString("items")
	}

	if cfg.Data.Items == "" || cfg.Model.File == "" {
		return fmt.Errorf("data.items and model.file are required")
	}

	output, _ := cmd.Flags().GetString("output")
	dtName, _ := cmd.Flags().GetString("dtype")

	dt, err := feature.ParseDType(dtName)

	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)

	items, err := reideval.LoadItems(cfg.Data.Items)

	if err != nil {
		return fmt.Errorf("error loading items: %w", err)
	}

	emb, err := newEmbedder(cfg.Model, &logger)

	if err != nil {
		return err
	}

	defer emb.Close()

	feats, err := emb.Embed(cmd.Context(), items)

	if err != nil {
		return err
	}

	if err := feature.Save(output, feats, dt); err != nil {
		return err
	}

	logger.Info().Str("file", output).Int("rows", len(feats)).Str("dtype", dt.String()).
		Str("fingerprint", feature.FingerprintHash(feats...)).Msg("features saved")

	return nil
}
