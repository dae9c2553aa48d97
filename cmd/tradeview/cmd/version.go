package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the tradeview CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tradeview version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "OHLC time-series store and query service")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
