package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/swdee/go-reideval/config"
	"github.com/swdee/go-reideval/history"
	"github.com/swdee/go-reideval/report"
)

// addDataFlags registers the flags locating the evaluation set
func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().String("labels", "", "labels file, one \"person_id camera_id\" per line")
	cmd.Flags().String("features", "", "feature file")
	cmd.Flags().String("items", "", "image list to extract features from")
	cmd.Flags().Int("num-query", 0, "number of leading items that are queries")
}

// applyDataFlags overrides the data config with any flags that were set
func applyDataFlags(cmd *cobra.Command, cfg *config.Config) {

	if cmd.Flags().Changed("labels") {
		cfg.Data.Labels, _ = cmd.Flags().GetString("labels")
	}

	if cmd.Flags().Changed("features") {
		cfg.Data.Features, _ = cmd.Flags().GetString("features")
	}

	if cmd.Flags().Changed("items") {
		cfg.Data.Items, _ = cmd.Flags().GetString("items")
	}

	if cmd.Flags().Changed("num-query") {
		cfg.Data.NumQuery, _ = cmd.Flags().GetInt("num-query")
	}
}

func evaluateCmd() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a model and write the diagnostics report",
		RunE:  runEvaluate,
	}

	addDataFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "report file, - for stdout")
	cmd.Flags().String("format", "", "report format (yaml, json)")
	cmd.Flags().Bool("record", false, "record the run in the history database")

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {

	cfg, err := loadConfig(cmd)

	if err != nil {
		return err
	}

	applyDataFlags(cmd, cfg)

	if cmd.Flags().Changed("output") {
		cfg.Report.Output, _ = cmd.Flags().GetString("output")
	}

	if cmd.Flags().Changed("format") {
		cfg.Report.Format, _ = cmd.Flags().GetString("format")
	}

	if cmd.Flags().Changed("record") {
		cfg.History.Enabled, _ = cmd.Flags().GetBool("record")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Log)
	ctx := cmd.Context()

	ld, err := loadEvaluator(ctx, cfg, &logger)

	if err != nil {
		return err
	}

	logger.Info().
		Int("queries", ld.eval.NumQuery()).
		Int("gallery", ld.eval.NumGallery()).
		Msg("rankings computed")

	rep, err := report.Build(ld.eval, report.Options{
		MaxRank: cfg.Report.MaxRank,
		TopK:    cfg.Report.TopK,
		Errors:  cfg.Report.Errors,
		Bins:    cfg.Report.Bins,
	})

	if err != nil {
		return err
	}

	logger.Info().
		Float64("rank1", rep.Rank1).
		Float64("rank5", rep.Rank5).
		Float64("rank10", rep.Rank10).
		Float64("map", rep.Metrics.MAP).
		Int("valid_queries", rep.Metrics.ValidQueries).
		Msg("evaluation complete")

	format, err := report.ParseFormat(cfg.Report.Format)

	if err != nil {
		return err
	}

	if err := rep.Save(cfg.Report.Output, format); err != nil {
		return err
	}

	if !cfg.History.Enabled {
		return nil
	}

	store, err := history.Open(cfg.History.Path)

	if err != nil {
		return fmt.Errorf("error opening history: %w", err)
	}

	defer store.Close()

	run, err := store.Record(ctx, history.Run{
		Model:        cfg.Model.Name,
		Fingerprint:  ld.fingerprint,
		NumQuery:     rep.NumQuery,
		NumGallery:   rep.NumGallery,
		ValidQueries: rep.Metrics.ValidQueries,
		Rank1:        rep.Rank1,
		Rank5:        rep.Rank5,
		Rank10:       rep.Rank10,
		MAP:          rep.Metrics.MAP,
		PosMean:      rep.Distributions.Positive.Mean,
		NegMean:      rep.Distributions.Negative.Mean,
	})

	if err != nil {
		return err
	}

	logger.Info().Str("id", run.ID).Str("path", cfg.History.Path).Msg("run recorded")

	return nil
}
