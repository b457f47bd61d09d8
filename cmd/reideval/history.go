package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/swdee/go-reideval/history"
	"gopkg.in/yaml.v3"
)

func historyCmd() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse recorded evaluation runs",
	}

	cmd.PersistentFlags().String("db", "", "history database path")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE:  runHistoryList,
	}
	list.Flags().IntP("limit", "n", 20, "maximum runs to list, 0 for all")
	list.Flags().String("fingerprint", "", "only runs over this feature set")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}

	cmd.AddCommand(list, show)

	return cmd
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {

	cfg, err := loadConfig(cmd)

	if err != nil {
		return nil, err
	}

	path := cfg.History.Path

	if cmd.Flags().Changed("db") {
		path, _ = cmd.Flags().GetString("db")
	}

	return history.Open(path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {

	store, err := openHistory(cmd)

	if err != nil {
		return err
	}

	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	fp, _ := cmd.Flags().GetString("fingerprint")

	var runs []history.Run

	if fp != "" {
		runs, err = store.ListByFingerprint(cmd.Context(), fp)
	} else {
		runs, err = store.List(cmd.Context(), limit)
	}

	if err != nil {
		return err
	}

	return printRuns(cmd.OutOrStdout(), runs)
}

func printRuns(w io.Writer, runs []history.Run) error {

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tMODEL\tRANK1\tRANK5\tMAP\tFINGERPRINT")

	for _, r := range runs {
		fp := r.Fingerprint

		if len(fp) > 12 {
			fp = fp[:12]
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%.4f\t%.4f\t%s\n", r.ID,
			r.CreatedAt.Format(time.DateTime), r.Model, r.Rank1, r.Rank5, r.MAP, fp)
	}

	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {

	store, err := openHistory(cmd)

	if err != nil {
		return err
	}

	defer store.Close()

	run, err := store.Get(cmd.Context(), args[0])

	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)

	if err := enc.Encode(run); err != nil {
		return err
	}

	return enc.Close()
}
