package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// nodectlVersion is set at build time via -ldflags.
var nodectlVersion = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the nodectl version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "nodectl version %s\n", nodectlVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
