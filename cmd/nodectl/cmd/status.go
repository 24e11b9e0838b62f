package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jihun-kang/orbisync-node/cmd/nodectl/cliconfig"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Validate the config file and print the hub, slot and initial node status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, hw, err := cliconfig.Load(configFile, envFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		n, err := nodeFromConfig(cfg, hw)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "hub:        %s\n", cfg.HubBaseURL)
		fmt.Fprintf(cmd.OutOrStdout(), "slot:       %s\n", cfg.SlotID)
		fmt.Fprintf(cmd.OutOrStdout(), "state:      %s\n", n.State())
		fmt.Fprintf(cmd.OutOrStdout(), "registered: %v\n", n.IsRegistered())
		fmt.Fprintf(cmd.OutOrStdout(), "tunnel:     %v\n", cfg.Features.EnableTunnel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
