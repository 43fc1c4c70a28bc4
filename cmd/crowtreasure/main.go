package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "crowtreasure",
	Short: "Give your thoughts to the crow and keep the treasures it forges",
	Long: `crowtreasure turns a passing thought into a small treasure forged by a
language model and keeps it in a chest you can draw from later.

Run without a subcommand to open the interactive interface.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable coloured output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/crowtreasure/config.json)")

	rootCmd.AddCommand(recordCmd, drawCmd, listCmd, showCmd, deleteCmd, exportCmd)
	rootCmd.AddCommand(relayCmd, mcpCmd, statusCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		printError("%v", err)
		os.Exit(1)
	}
}

func versionString() string {
	return fmt.Sprintf("crowtreasure %s", version)
}
