package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/qubitpulse/relay-server-rr/internal/config"
	"github.com/qubitpulse/relay-server-rr/internal/tmux"
)

var (
	configPath string
	tmuxSocket string
)

var rootCmd = &cobra.Command{
	Use:   "relay-server",
	Short: "Relay tmux sessions to WebSocket clients",
	Long: `Relay the pane of one tmux session to every connected WebSocket client
and route their keystrokes back into it.

Running relay-server with no subcommand starts the server.

Examples:
  relay-server                          # serve on 0.0.0.0:8765
  relay-server --port 9000              # serve on another port
  relay-server --socket work            # use tmux -L work
  relay-server sessions                 # list tmux sessions and exit`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file (defaults are used if it does not exist)")
	rootCmd.PersistentFlags().StringVar(&tmuxSocket, "socket", "", "tmux server socket name (tmux -L)")
	addServeFlags(rootCmd)
}

// loadConfig reads the config file and applies flags that are shared by
// every subcommand.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("socket") {
		cfg.Tmux.Socket = tmuxSocket
	}
	return cfg, nil
}

func newTmux(cfg *config.Config) *tmux.Tmux {
	return tmux.New(
		tmux.ExecRunner{Binary: cfg.Tmux.Binary},
		tmux.WithSocket(cfg.Tmux.Socket),
		tmux.WithHistoryLines(cfg.Capture.HistoryLines),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
