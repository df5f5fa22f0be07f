package commands

import (
	"context"
	"fmt"
	"mostracker/internal/config"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "tracker polls follower counts of the MoS roster and keeps their history.",
	// errors are printed by ExecuteContext
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&configPath, "config", "c", config.DefaultFile,
		"The config file, <name>.local.<ext> next to it overrides it.",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
