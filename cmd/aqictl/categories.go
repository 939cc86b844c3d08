package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List AQI categories and their score ranges",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		categories := airquality.Categories()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), categories)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CATEGORY\tRANGE\tCOLOR\tLABEL")
		for _, c := range categories {
			upper := "+"
			if c.MaxScore > 0 {
				upper = fmt.Sprintf("-%d", c.MaxScore)
			}
			fmt.Fprintf(tw, "%s\t%d%s\t%s\t%s\n", c.Category, c.MinScore, upper, c.Color, c.Label)
		}
		return tw.Flush()
	},
}

func init() { rootCmd.AddCommand(categoriesCmd) }
