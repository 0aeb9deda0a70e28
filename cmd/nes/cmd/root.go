package cmd

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	verbose    bool
	debug      bool
	enableOtel bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nes",
	Short: "nes protocol client",
	Long: `nes is a client for servers speaking the nes protocol: HTTP-like
request/response RPC with broadcast delivery over a single persistent
WebSocket connection.

It can issue one-shot requests, tail broadcasts, and run configured
requests on cron schedules.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = version

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "debug output")
	rootCmd.PersistentFlags().BoolVar(&enableOtel, "otel", false, "enable OpenTelemetry metrics and tracing")
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}

// GetDebug returns the debug flag value
func GetDebug() bool {
	return debug
}

// GetOtel returns the otel flag value
func GetOtel() bool {
	return enableOtel
}
