// Package cmd wires the coordinator into a command line tool.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstepper/agentstepper/internal/config"
	"github.com/agentstepper/agentstepper/internal/version"
)

var (
	cfgFile    string
	host       string
	clientPort int
	uiPort     int
	model      string
	runFiles   []string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "agentstepper",
	Short: "Interactive step debugger for LLM agent programs",
	Long: "agentstepper coordinates an instrumented agent program and a debugger UI\n" +
		"over two WebSocket streams, letting you halt the agent at breakpoints,\n" +
		"inspect and edit payloads, and replay recorded runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "INI config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().StringVar(&host, "host", config.DefaultHost, "interface to bind both listeners to")
	rootCmd.Flags().IntVar(&clientPort, "client-port", config.DefaultClientPort, "port for the agent connection")
	rootCmd.Flags().IntVar(&uiPort, "ui-port", config.DefaultUIPort, "port for the UI connection")
	rootCmd.Flags().StringVar(&model, "model", config.DefaultModel, "OpenAI model for breakpoint summaries")
	rootCmd.Flags().StringSliceVarP(&runFiles, "runs", "r", nil, "run blob files to preload into the history")

	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("agentstepper %s\n", version.ServerVersion)
		},
	}
}

// resolveConfig layers explicit flags over the config file over defaults.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = host
	}
	if cmd.Flags().Changed("client-port") {
		cfg.ClientPort = clientPort
	}
	if cmd.Flags().Changed("ui-port") {
		cfg.UIPort = uiPort
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = model
	}
	if cmd.Flags().Changed("runs") {
		cfg.Runs = runFiles
	}
	return cfg, nil
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
