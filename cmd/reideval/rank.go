package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func rankCmd() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Print the junk filtered top-k gallery matches of one query",
		RunE:  runRank,
	}

	addDataFlags(cmd)
	cmd.Flags().IntP("query", "q", 0, "query index")
	cmd.Flags().IntP("top", "k", 5, "number of ranked results to print")

	return cmd
}

func runRank(cmd *cobra.Command, args []string) error {

	cfg, err := loadConfig(cmd)

	if err != nil {
		return err
	}

	applyDataFlags(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	q, _ := cmd.Flags().GetInt("query")
	top, _ := cmd.Flags().GetInt("top")

	logger := newLogger(cfg.Log)

	ld, err := loadEvaluator(cmd.Context(), cfg, &logger)

	if err != nil {
		return err
	}

	cmc, ranked, err := ld.eval.RankingForQuery(q)

	if err != nil {
		return err
	}

	ql, _ := ld.eval.QueryLabel(q)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "query %d: person %d camera %d\n", q, ql.PersonID, ql.CameraID)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tITEM\tPERSON\tCAMERA\tSIMILARITY\tMATCH")

	for k := 0; k < top && k < len(ranked); k++ {
		g := ranked[k]

		gl, err := ld.eval.GalleryLabel(g)

		if err != nil {
			return err
		}

		item, err := ld.eval.ItemIndex(g)

		if err != nil {
			return err
		}

		sim, err := ld.eval.Similarity(q, g)

		if err != nil {
			return err
		}

		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.3f\t%t\n", k+1, item,
			gl.PersonID, gl.CameraID, sim, cmc[k])
	}

	return tw.Flush()
}
