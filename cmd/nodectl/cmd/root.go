package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
	debug      bool

	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nodectl",
	Short: "nodectl runs and inspects an orbisync edge node",
	Long: `nodectl drives pkg/node against a Hub: it runs the session state
machine and tunnel client until interrupted, or just validates a config
file and prints the hub, slot and initial node status it yields.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if debug {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "nodectl.yaml", "path to the node config YAML file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env overlay for secret fields (skipped if absent)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}
