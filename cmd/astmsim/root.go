package main

import (
	"github.com/spf13/cobra"

	"github.com/openlis/astmsim/logger"
)

// Defaults shared by flags, environment variables, and the config file.
const (
	defaultPort          = 5000
	defaultAnalyzerType  = "HEMATOLOGY"
	defaultResponseDelay = 100 // milliseconds
)

var (
	flagPort          int
	flagAnalyzerType  string
	flagResponseDelay int
	flagVerbose       bool
	flagConfigFile    string
	flagTemplatesDir  string
)

// rootCmd is the base command for astmsim.
var rootCmd = &cobra.Command{
	Use:   "astmsim",
	Short: "ASTM LIS2-A2 laboratory analyzer simulator",
	Long: `Astmsim stands in for a laboratory analyzer when testing LIS bridges.
It answers the low-level LIS1-A link handshake, responds to test menu
queries, receives result transmissions, and can act as the initiator by
pushing generated results to a bridge over ASTM, MLLP, or HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			logger.SetLevel(logger.DebugLevel)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVarP(&flagPort, "port", "p", defaultPort, "link listener port (env ASTM_PORT)")
	pf.StringVarP(&flagAnalyzerType, "analyzer-type", "t", defaultAnalyzerType, "analyzer type to simulate (env ANALYZER_TYPE)")
	pf.IntVarP(&flagResponseDelay, "response-delay", "d", defaultResponseDelay, "delay before each link response in ms (env RESPONSE_DELAY_MS)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flagConfigFile, "config", "", "YAML config file")
	pf.StringVar(&flagTemplatesDir, "templates", "", "directory of analyzer template JSON files")
}
