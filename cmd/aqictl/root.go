// Command aqictl queries the air quality map stack from the terminal: AQI
// conversion, city search, nearby locations and live city aggregation.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/varunkainth/airpollutionmap/internal/app"
	"github.com/varunkainth/airpollutionmap/internal/config"
)

// Version is set at compile time via ldflags.
var Version = "dev"

var (
	cfg *config.Config
	log zerolog.Logger

	configFile string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "aqictl",
	Short:        "Air quality map command line client",
	Long:         "Converts pollutant readings to AQI, searches the city gazetteer and fetches aggregated city air quality.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}

		c, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		logCfg := cfg.Log
		logCfg.Pretty = true
		if !verbose {
			logCfg.Level = "warn"
		}
		log = app.NewLogger(logCfg, "aqictl", Version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured level")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
