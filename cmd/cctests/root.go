package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exit terminates the process; replaced in tests.
var exit = os.Exit

var rootCmd = &cobra.Command{
	Use:   "cctests",
	Short: "cctests runs native test programs",
	Long: `cctests runs test programs that follow the Automake exit code
protocol (0 pass, 1 fail, 77 skip, 99 hard error) and selects the
groups and tests they execute through the cctests_file,
cctests_group and cctests_name variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console or json")
}
