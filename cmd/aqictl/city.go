package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/app"
)

var cityCmd = &cobra.Command{
	Use:   "city <name>",
	Short: "Fetch aggregated air quality for a city",
	Long:  "Resolves the city, fetches the center reading and every nearby location from the provider and prints the result. Requires provider.api_key.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stack, err := app.Build(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer stack.Close()

		match, err := resolveCity(cmd, stack.Resolver, strings.Join(args, " "))
		if err != nil {
			return err
		}

		result, err := stack.Service.CityAirQuality(ctx, airquality.CityRequest{
			City:   match.Name,
			Center: match.Coordinate,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), result)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: AQI %d (%s)\n", result.City, result.AQI.Score, result.AQI.Info().Label)
		if result.Degraded > 0 {
			fmt.Fprintf(out, "%d of %d locations unavailable\n", result.Degraded, len(result.Points))
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "LOCATION\tAQI\tPM2.5\tCATEGORY")
		for _, p := range result.Points {
			if p.Reading == nil {
				fmt.Fprintf(tw, "%s\t-\t-\tunavailable\n", p.Name)
				continue
			}
			v := airquality.ComputeAQI(p.Reading)
			pm25 := "-"
			if p.Reading.PM25 != nil {
				pm25 = fmt.Sprintf("%.1f", *p.Reading.PM25)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.Name, v.Score, pm25, v.Category)
		}
		return tw.Flush()
	},
}

func init() {
	addCoordinateFlags(cityCmd)
	rootCmd.AddCommand(cityCmd)
}
