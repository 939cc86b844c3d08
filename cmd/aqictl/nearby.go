package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/varunkainth/airpollutionmap/internal/app"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

var nearbyCmd = &cobra.Command{
	Use:   "nearby <city>",
	Short: "List the monitoring locations used for a city",
	Long:  "Prints the curated locations for a city, or the compass points synthesized around its center when none are curated. No readings are fetched.",
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

		locations, err := stack.Service.NearbyLocations(ctx, match.Name, match.Coordinate)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"city":      match.Name,
				"key":       stack.Service.CanonicalKey(match.Name),
				"locations": locations,
			})
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tLAT\tLNG")
		for _, l := range locations {
			fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\n", l.ID, l.Name, l.Coordinate.Lat, l.Coordinate.Lng)
		}
		return tw.Flush()
	},
}

// resolveCity returns the best gazetteer match for name, or the coordinate
// given by --lat/--lng when both are set.
func resolveCity(cmd *cobra.Command, resolver *city.Resolver, name string) (*city.Match, error) {
	lat, _ := cmd.Flags().GetFloat64("lat")
	lng, _ := cmd.Flags().GetFloat64("lng")
	if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
		c := geo.Coordinate{Lat: lat, Lng: lng}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return &city.Match{Record: city.Record{Name: name, Coordinate: c}}, nil
	}
	return resolver.Resolve(cmd.Context(), name)
}

func addCoordinateFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("lat", 0, "city center latitude (skips gazetteer lookup)")
	cmd.Flags().Float64("lng", 0, "city center longitude (skips gazetteer lookup)")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
}

func init() {
	addCoordinateFlags(nearbyCmd)
	rootCmd.AddCommand(nearbyCmd)
}
