package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jihun-kang/orbisync-node/cmd/nodectl/cliconfig"
	"github.com/jihun-kang/orbisync-node/cmd/nodectl/tui"
	"github.com/jihun-kang/orbisync-node/pkg/node"
)

var (
	tickInterval time.Duration
	withTUI      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the node against its configured Hub until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, hw, err := cliconfig.Load(configFile, envFile)
		if err != nil {
			return err
		}
		n, err := nodeFromConfig(cfg, hw)
		if err != nil {
			return err
		}

		if withTUI {
			p := tea.NewProgram(tui.New(n), tea.WithAltScreen())
			_, err := p.Run()
			return err
		}
		return runHeadless(n)
	},
}

func init() {
	runCmd.Flags().DurationVar(&tickInterval, "tick-interval", 200*time.Millisecond, "how often to call Tick")
	runCmd.Flags().BoolVar(&withTUI, "tui", false, "show the live-status dashboard instead of log lines")
	rootCmd.AddCommand(runCmd)
}

func runHeadless(n *node.Node) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	lastState := n.State()
	for range ticker.C {
		if err := n.Tick(); err != nil {
			return err
		}
		if s := n.State(); s != lastState {
			fmt.Println("state:", s)
			lastState = s
		}
	}
	return nil
}

func nodeFromConfig(cfg node.NodeConfig, hw node.HardwareIdentity) (*node.Node, error) {
	return node.NewNode(cfg, hw, node.WithLogger(log))
}
