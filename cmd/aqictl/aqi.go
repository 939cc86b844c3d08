package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
)

var (
	aqiPM25  float64
	aqiIndex int
)

var aqiCmd = &cobra.Command{
	Use:   "aqi",
	Short: "Convert a PM2.5 concentration or provider index to AQI",
	Long:  "Converts a PM2.5 concentration (µg/m³) to an AQI score and category. Without --pm25 the provider's 1-5 index is mapped instead.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reading := &airquality.PollutantReading{CategoryIndex: aqiIndex}
		switch {
		case cmd.Flags().Changed("pm25"):
			if aqiPM25 < 0 {
				return errors.New("--pm25 must not be negative")
			}
			reading.PM25 = airquality.Float(aqiPM25)
		case !cmd.Flags().Changed("index"):
			return errors.New("one of --pm25 or --index is required")
		}

		value := airquality.ComputeAQI(reading)
		info := value.Info()
		precautions := airquality.Precautions(value.Score)

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"score":       value.Score,
				"category":    value.Category,
				"label":       info.Label,
				"color":       info.Color,
				"precautions": precautions,
			})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "AQI %d (%s)\n", value.Score, info.Label)
		if len(precautions) > 0 {
			fmt.Fprintf(out, "  %s\n", strings.Join(precautions, "\n  "))
		}
		return nil
	},
}

func init() {
	aqiCmd.Flags().Float64Var(&aqiPM25, "pm25", 0, "PM2.5 concentration in µg/m³")
	aqiCmd.Flags().IntVar(&aqiIndex, "index", 0, "provider category index (1-5)")
	rootCmd.AddCommand(aqiCmd)
}
