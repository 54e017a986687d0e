package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	internal "github.com/ZanzyTHEbar/third-eye/thirdeye"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/results"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report [artifact]",
		Short: "Print the cross-seed summary of a results artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := internal.DefaultOutputPath
			if len(args) == 1 {
				path = args[0]
			}
			result, err := results.ReadArtifact(path)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEED\tSTATUS\tI-S\tI-O\tS-O\tCLASSIFICATION\tLEANS\tVERDICT")
			for _, row := range results.Summarize(result) {
				if !row.HasReport {
					fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t-\t-\t-\n", row.SeedID, row.Status)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%.3f\t%.3f\t%.3f\t%s\t%s\t%s (%.3f)\n",
					row.SeedID, row.Status,
					row.Pairs.InterpreterSkeptic, row.Pairs.InterpreterObserver, row.Pairs.SkepticObserver,
					row.Classification, row.ObserverLeans, row.Verdict, row.Equidistance)
			}
			return w.Flush()
		},
	}
}
