package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/varunkainth/airpollutionmap/internal/app"
	"github.com/varunkainth/airpollutionmap/internal/city"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the city gazetteer",
	Long:  "Searches the gazetteer by name and alias. When provider.api_key is set, external results are merged in.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := app.Build(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer stack.Close()

		matches, err := stack.Resolver.Search(cmd.Context(), strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}
		return printMatches(cmd, matches)
	},
}

func printMatches(cmd *cobra.Command, matches []city.Match) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), matches)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tCITY\tSTATE\tCOUNTRY\tLAT\tLNG\tSOURCE")
	for _, m := range matches {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.4f\t%.4f\t%s\n",
			m.Score, m.Name, m.State, m.Country, m.Coordinate.Lat, m.Coordinate.Lng, m.Source)
	}
	return tw.Flush()
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", city.DefaultLimit, "maximum number of results")
	rootCmd.AddCommand(searchCmd)
}
